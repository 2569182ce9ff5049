package order_api

import (
	"github.com/go-chi/chi/v5"
	"github.com/notdp/franxx-store-sub000/internal/auth"
)

// Mount registers the storefront routes under /api.
func Mount(r chi.Router, h *Handler, sseHandler *SSEHandler, a *auth.Authenticator) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)

		r.Route("/stripe", func(r chi.Router) {
			r.Post("/webhook", h.StripeWebhook)
			r.With(a.RequireUser).Post("/create-checkout-session", h.CreateCheckoutSession)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/query", h.QueryOrder)
			r.Get("/session/{sessionId}", h.GetOrderBySession)
			r.Get("/session/{sessionId}/events", sseHandler.HandleSessionEvents)

			r.Group(func(r chi.Router) {
				r.Use(a.RequireUser)
				r.Get("/", h.ListMyOrders)
				r.Get("/{orderId}", h.GetMyOrder)
			})
		})
	})
}
