package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusFailed     OrderStatus = "failed"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusDelivered, OrderStatusFailed:
		return true
	}
	return false
}

// PaymentStatus mirrors the payment provider's view of the order. It overlaps with
// OrderStatus on purpose: the storefront badges render both.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Account is the credential payload delivered to the customer.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string        `bun:"id,pk" json:"id"`
	StripeSessionID  string        `bun:"stripe_session_id,notnull,unique" json:"stripe_session_id"`
	PackageID        string        `bun:"package_id" json:"package_id"`
	PackageName      string        `bun:"package_name" json:"package_name"`
	Amount           float64       `bun:"amount" json:"amount"`
	Currency         string        `bun:"currency" json:"currency"`
	Email            string        `bun:"email" json:"email"`
	Phone            string        `bun:"phone" json:"phone"`
	UserID           string        `bun:"user_id,nullzero" json:"user_id,omitempty"`
	StripeCustomerID string        `bun:"stripe_customer_id,nullzero" json:"stripe_customer_id,omitempty"`
	Status           OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentStatus    PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	Account          *Account      `bun:"account,type:jsonb" json:"account"`
	CreatedAt        time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeliveredAt      time.Time     `bun:"delivered_at,nullzero" json:"delivered_at,omitempty"`
}

// Delivered reports whether the order already carries its credential payload.
func (o *Order) Delivered() bool {
	return o.Status == OrderStatusDelivered && o.Account != nil
}

// OrderQueryRequest is the guest lookup body.
type OrderQueryRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

type OrderStatusUpdateRequest struct {
	Status        OrderStatus   `json:"status" validate:"required"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
}
