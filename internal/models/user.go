package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID               string    `bun:"id,pk" json:"id"`
	Email            string    `bun:"email" json:"email"`
	Phone            string    `bun:"phone" json:"phone,omitempty"`
	Role             string    `bun:"role,notnull,default:'user'" json:"role"`
	StripeCustomerID string    `bun:"stripe_customer_id,nullzero" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}
