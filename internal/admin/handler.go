package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/notdp/franxx-store-sub000/internal/admin/db"
	analytics_api "github.com/notdp/franxx-store-sub000/internal/analytics/api"
	"github.com/notdp/franxx-store-sub000/internal/auth"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/utils"
	"github.com/uptrace/bun"
)

// UserRoles changes roles in the users table.
type UserRoles interface {
	SetUserRole(ctx context.Context, userID, role string) error
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// PaymentLogs reads the Stripe event audit trail.
type PaymentLogs interface {
	ListPaymentLogs(ctx context.Context, limit, offset int) ([]models.PaymentLog, error)
}

// Handler serves the /api/admin back-office.
type Handler struct {
	Orders    *order.OrderService
	Users     UserRoles
	Roles     *auth.RoleCache
	Analytics *analytics_api.Handler
	// PaymentLogs is optional; without it /payment-logs is not mounted.
	PaymentLogs PaymentLogs
	Logger      *logger.Logger

	products      *Resource[models.Product]
	emailAccounts *Resource[models.EmailAccount]
	iosAccounts   *Resource[models.IOSAccount]
	virtualCards  *Resource[models.VirtualCard]
	addresses     *Resource[models.Address]
	validate      *validator.Validate
}

func NewHandler(bunDB *bun.DB, orders *order.OrderService, users UserRoles, roles *auth.RoleCache, analytics *analytics_api.Handler, log *logger.Logger) *Handler {
	v := validator.New()
	return &Handler{
		Orders:    orders,
		Users:     users,
		Roles:     roles,
		Analytics: analytics,
		Logger:    log,

		products:      NewResource("products", db.NewStore[models.Product](bunDB, "sort_order ASC, name ASC"), v, log),
		emailAccounts: NewResource("email-accounts", db.NewStore[models.EmailAccount](bunDB, ""), v, log),
		iosAccounts:   NewResource("ios-accounts", db.NewStore[models.IOSAccount](bunDB, ""), v, log),
		virtualCards:  NewResource("virtual-cards", db.NewStore[models.VirtualCard](bunDB, ""), v, log),
		addresses:     NewResource("addresses", db.NewStore[models.Address](bunDB, ""), v, log),
		validate:      v,
	}
}

// Mount registers the back-office under /api/admin behind the admin role check.
func (h *Handler) Mount(r chi.Router, a *auth.Authenticator) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(a.RequireUser, a.RequireAdmin)

		r.Mount("/products", h.products.Routes())
		r.Mount("/email-accounts", h.emailAccounts.Routes())
		r.Mount("/ios-accounts", h.iosAccounts.Routes())
		r.Mount("/virtual-cards", h.virtualCards.Routes())
		r.Mount("/addresses", h.addresses.Routes())

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
		})
		r.Put("/users/{id}/role", h.SetUserRole)
		if h.PaymentLogs != nil {
			r.Get("/payment-logs", h.ListPaymentLogs)
		}

		if h.Analytics != nil {
			h.Analytics.RegisterRoutes(r)
		}
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		utils.WriteError(w, http.StatusBadRequest, "Invalid status filter", string(status))
		return
	}
	limit, offset := pagination(r)

	orders, total, err := h.Orders.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("List orders: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list orders", "internal error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "orders retrieved", Page[models.Order]{Items: orders, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.Orders.GetOrder(r.Context(), id)
	if errors.Is(err, order.ErrOrderNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Order not found", "not found")
		return
	}
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("Get order %s: %v", id, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve order", "internal error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "order retrieved", o)
}

func (h *Handler) ListPaymentLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	logs, err := h.PaymentLogs.ListPaymentLogs(r.Context(), limit, offset)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("List payment logs: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list payment logs", "internal error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "payment logs retrieved", logs)
}

// UpdateOrderStatus is the manual override used by support staff.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.OrderStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	o, err := h.Orders.UpdateOrderStatus(r.Context(), id, req)
	switch {
	case errors.Is(err, order.ErrInvalidStatus):
		utils.WriteError(w, http.StatusBadRequest, "Invalid status", err.Error())
		return
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteError(w, http.StatusNotFound, "Order not found", "not found")
		return
	case err != nil:
		h.Logger.Error("ADMIN", fmt.Sprintf("Update order %s status: %v", id, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update order", "internal error")
		return
	}

	h.Logger.LogSecurity("ADMIN", fmt.Sprintf("Order %s status overridden to %s by %s", id, o.Status, auth.UserID(r.Context())))
	utils.WriteSuccess(w, http.StatusOK, "order updated", o)
}

// SetUserRole grants or revokes the admin role and drops the cached value.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	err := h.Users.SetUserRole(r.Context(), id, req.Role)
	if errors.Is(err, models.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusNotFound, "User not found", "not found")
		return
	}
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("Set role for %s: %v", id, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update role", "internal error")
		return
	}
	if h.Roles != nil {
		if err := h.Roles.Invalidate(r.Context(), id); err != nil {
			h.Logger.Warn("REDIS", fmt.Sprintf("Failed to drop cached role for %s: %v", id, err))
		}
	}

	h.Logger.LogSecurity("ADMIN", fmt.Sprintf("User %s role set to %s by %s", id, req.Role, auth.UserID(r.Context())))
	utils.WriteSuccess(w, http.StatusOK, "role updated", map[string]string{"id": id, "role": req.Role})
}
