package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/notdp/franxx-store-sub000/internal/auth"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/utils"
)

// MaxWebhookBodyBytes bounds the webhook body read.
const MaxWebhookBodyBytes = int64(65536)

type errorBody struct {
	Error string `json:"error"`
}

// CreateCheckoutSession opens a Stripe checkout for the authenticated caller.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}

	var req models.CheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Invalid checkout request: %v", err)})
		return
	}

	product, err := h.Store.GetProduct(ctx, req.PackageID)
	if errors.Is(err, models.ErrProductNotFound) || (err == nil && !product.Active) {
		h.Logger.Warn("CHECKOUT", fmt.Sprintf("Unknown or inactive package %s requested by %s", req.PackageID, caller.ID))
		utils.WriteJSON(w, http.StatusNotFound, errorBody{Error: "Package not found"})
		return
	}
	if err != nil {
		h.Logger.Error("CHECKOUT", fmt.Sprintf("Failed to load package %s: %v", req.PackageID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to create checkout session"})
		return
	}

	amount := product.ChargeAmount()
	if req.SalePrice > 0 && math.Abs(req.SalePrice-amount) >= 0.005 {
		h.Logger.LogSecurity("CHECKOUT", fmt.Sprintf("Client price %.2f for package %s differs from catalogue price %.2f, charging catalogue price",
			req.SalePrice, product.ID, amount))
	}

	user, err := h.Store.EnsureUser(ctx, &models.User{ID: caller.ID, Email: caller.Email, Phone: caller.Phone})
	if err != nil {
		h.Logger.Error("CHECKOUT", fmt.Sprintf("Failed to load profile for %s: %v", caller.ID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to create checkout session"})
		return
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = h.Payments.CreateCustomer(ctx, user.ID, user.Email)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to create checkout session"})
			return
		}
		if err := h.Store.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			h.Logger.Error("CHECKOUT", fmt.Sprintf("Failed to store customer %s for %s: %v", customerID, user.ID, err))
		}
	}

	description := req.PackageDescription
	if description == "" {
		description = product.Description
	}
	currency := strings.ToLower(product.Currency)
	if currency == "" {
		currency = h.Currency
	}

	session, err := h.Payments.CreateCheckoutSession(ctx, models.CheckoutSessionInput{
		CustomerID:  customerID,
		UserID:      user.ID,
		PackageID:   product.ID,
		PackageName: product.Name,
		Description: description,
		UnitAmount:  utils.MajorToMinor(amount),
		Currency:    currency,
		SuccessURL:  h.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   h.BaseURL + "/payment/cancel",
	})
	if err != nil {
		utils.WriteJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to create checkout session"})
		return
	}

	h.Metrics.CheckoutCreated(ctx, product.ID)
	utils.WriteJSON(w, http.StatusOK, models.CheckoutSessionResponse{URL: session.URL, SessionID: session.ID})
}

// StripeWebhook handles webhook events from Stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: failed to read body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to read request body"})
		return
	}

	ack, err := h.OrderService.HandleStripeWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var webhookErr *order.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Info("API", fmt.Sprintf("StripeWebhook: handling webhook error category=%s, status=%d",
				webhookErr.Category, webhookErr.StatusCode))
			utils.WriteJSON(w, webhookErr.StatusCode, errorBody{Error: webhookErr.PublicError})
			return
		}

		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: failed to process webhook: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Webhook handler failed"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, ack)
}
