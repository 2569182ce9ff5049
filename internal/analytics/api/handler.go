package analytics_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notdp/franxx-store-sub000/internal/analytics"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// RegisterRoutes registers the analytics routes on a chi router. Callers mount
// it behind the admin middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/summary", h.GetSummary)
	})
}

// GetSummary returns order counts per status and delivered revenue.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to build sales summary: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to retrieve analytics", "internal error")
		return
	}

	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Sales summary: %d orders, %.2f delivered revenue", summary.TotalOrders, summary.DeliveredRevenue))
	utils.WriteSuccess(w, http.StatusOK, "Analytics retrieved", summary)
}
