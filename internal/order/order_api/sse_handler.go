package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/sse"
)

const keepAliveInterval = 25 * time.Second

// SessionOrders looks up the order created for a checkout session.
type SessionOrders interface {
	GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error)
}

// SSEHandler streams order status changes for a checkout session to the
// payment success page.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.OrderEventEmitter
	Orders       SessionOrders
}

func NewSSEHandler(log *logger.Logger, emitter *sse.OrderEventEmitter, orders SessionOrders) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
		Orders:       orders,
	}
}

// HandleSessionEvents sends the current order (if any) and then every change
// until the client disconnects.
func (h *SSEHandler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	h.setupSSEHeaders(w)

	ctx := r.Context()
	// Subscribe before the snapshot so a change in between is not lost.
	eventChan := h.EventEmitter.Subscribe(ctx, sessionID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"sessionId\":%q}\n\n", sessionID)
	flusher.Flush()

	current, err := h.Orders.GetOrderBySession(ctx, sessionID)
	switch {
	case err == nil:
		h.writeOrder(w, *current)
		flusher.Flush()
	case !errors.Is(err, order.ErrOrderNotFound):
		h.Logger.Error("SSE", fmt.Sprintf("Snapshot for session %s failed: %v", sessionID, err))
	}

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to order events for session %s", sessionID))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case o, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for session %s", sessionID))
				return
			}
			h.writeOrder(w, o)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from session %s", sessionID))
			return
		}
	}
}

func (h *SSEHandler) writeOrder(w http.ResponseWriter, o models.Order) {
	jsonData, err := json.Marshal(o)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize order event: %v", err))
		return
	}
	fmt.Fprintf(w, "event: order\ndata: %s\n\n", jsonData)
}

// Helper function to set up SSE headers
func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
