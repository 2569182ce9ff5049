package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentLog is the append-only audit record of a handled webhook event.
type PaymentLog struct {
	bun.BaseModel `bun:"table:payment_logs"`

	ID            string    `bun:"id,pk" json:"id"`
	StripeEventID string    `bun:"stripe_event_id,notnull,unique" json:"stripe_event_id"`
	EventType     string    `bun:"event_type,notnull" json:"event_type"`
	Payload       string    `bun:"payload,type:text" json:"payload"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// OrderEvent is streamed to Kafka on every order state change.
type OrderEvent struct {
	Type        string        `json:"type"`
	OrderID     string        `json:"order_id"`
	SessionID   string        `json:"session_id"`
	UserID      string        `json:"user_id,omitempty"`
	Email       string        `json:"email"`
	PackageName string        `json:"package_name"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Status      OrderStatus   `json:"status"`
	Payment     PaymentStatus `json:"payment_status"`
	Account     *Account      `json:"account,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

const (
	OrderEventCreated   = "order.created"
	OrderEventDelivered = "order.delivered"
	OrderEventFailed    = "order.failed"
)

// NewOrderEvent snapshots an order for publishing.
func NewOrderEvent(eventType string, order *Order) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		SessionID:   order.StripeSessionID,
		UserID:      order.UserID,
		Email:       order.Email,
		PackageName: order.PackageName,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Status:      order.Status,
		Payment:     order.PaymentStatus,
		Account:     order.Account,
		Timestamp:   time.Now().UTC(),
	}
}
