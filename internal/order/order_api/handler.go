package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/notdp/franxx-store-sub000/internal/auth"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/metrics"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/utils"
	"github.com/stripe/stripe-go/v82"
)

// Store is the catalogue and profile data the storefront handlers need.
type Store interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
	EnsureUser(ctx context.Context, user *models.User) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

// CheckoutPayments opens Stripe checkout sessions.
type CheckoutPayments interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, in models.CheckoutSessionInput) (*stripe.CheckoutSession, error)
}

type Handler struct {
	OrderService *order.OrderService
	Store        Store
	Payments     CheckoutPayments
	Metrics      *metrics.Recorder
	Logger       *logger.Logger

	// BaseURL prefixes the checkout success and cancel URLs.
	BaseURL string
	// Currency is used for products without one.
	Currency string

	validate *validator.Validate
}

func NewHandler(orderService *order.OrderService, store Store, payments CheckoutPayments, baseURL, currency string, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Store:        store,
		Payments:     payments,
		Logger:       log,
		BaseURL:      baseURL,
		Currency:     currency,
		validate:     validator.New(),
	}
}

// ListMyOrders returns the caller's orders, newest first.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	orders, err := h.OrderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyOrders: failed for user %s: %v", userID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve orders", "internal error")
		return
	}

	h.Logger.Debug("API", fmt.Sprintf("ListMyOrders: found %d orders for user %s", len(orders), userID))
	utils.WriteSuccess(w, http.StatusOK, "Orders retrieved", orders)
}

// GetMyOrder returns one order when the caller owns it.
func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	userID := auth.UserID(r.Context())

	o, err := h.OrderService.GetOrderForUser(r.Context(), orderID, userID)
	if errors.Is(err, order.ErrOrderNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Order not found", "order not found")
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetMyOrder: order %s: %v", orderID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve order", "internal error")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Order retrieved", o)
}

// QueryOrder is the guest lookup by order id and checkout phone number.
func (h *Handler) QueryOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "orderId and phone are required", err.Error())
		return
	}

	o, err := h.OrderService.QueryGuestOrder(r.Context(), req)
	if errors.Is(err, order.ErrOrderNotFound) {
		h.Logger.LogSecurity("API", fmt.Sprintf("QueryOrder: no match for order %s", req.OrderID))
		utils.WriteError(w, http.StatusNotFound, "Order not found", "order not found")
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("QueryOrder: order %s: %v", req.OrderID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve order", "internal error")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Order retrieved", o)
}

// GetOrderBySession backs the payment success page.
func (h *Handler) GetOrderBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	o, err := h.OrderService.GetOrderBySession(r.Context(), sessionID)
	if errors.Is(err, order.ErrOrderNotFound) {
		// The webhook may not have arrived yet; the page keeps polling or listens on SSE.
		utils.WriteError(w, http.StatusNotFound, "Order not found", "order not found")
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderBySession: session %s: %v", sessionID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve order", "internal error")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Order retrieved", o)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListActiveProducts(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListProducts: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve products", "internal error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Products retrieved", products)
}
