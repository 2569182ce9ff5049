package sse

import (
	"context"
	"sync"

	"github.com/notdp/franxx-store-sub000/internal/models"
)

// OrderEventEmitter fans order status changes out to SSE clients watching a
// checkout session.
type OrderEventEmitter struct {
	clients map[string][]chan models.Order
	mu      sync.RWMutex
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		clients: make(map[string][]chan models.Order),
	}
}

// Subscribe registers a client for sessionID. The channel is closed once ctx is done.
func (e *OrderEventEmitter) Subscribe(ctx context.Context, sessionID string) <-chan models.Order {
	clientChan := make(chan models.Order, 10)

	e.mu.Lock()
	e.clients[sessionID] = append(e.clients[sessionID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(sessionID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts the order to every client of its session. Slow clients miss updates.
func (e *OrderEventEmitter) Emit(order models.Order) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[order.StripeSessionID] {
		select {
		case clientChan <- order:
		default:
		}
	}
}

func (e *OrderEventEmitter) remove(sessionID string, clientChan chan models.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[sessionID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[sessionID]) == 0 {
		delete(e.clients, sessionID)
	}
}

func (e *OrderEventEmitter) ClientCount(sessionID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[sessionID])
}
