package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Inventory statuses shared by the account and card tables.
const (
	InventoryAvailable = "available"
	InventoryAssigned  = "assigned"
	InventoryDisabled  = "disabled"
)

// EmailAccount is a Gmail account held in the back-office inventory.
type EmailAccount struct {
	bun.BaseModel `bun:"table:email_accounts"`

	ID            string    `bun:"id,pk" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email" validate:"required,email"`
	Password      string    `bun:"password,notnull" json:"password" validate:"required"`
	RecoveryEmail string    `bun:"recovery_email" json:"recovery_email" validate:"omitempty,email"`
	Status        string    `bun:"status,notnull" json:"status" validate:"required,oneof=available assigned disabled"`
	Notes         string    `bun:"notes" json:"notes"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (a *EmailAccount) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampRecord(query, &a.ID, &a.CreatedAt, &a.UpdatedAt)
	return nil
}

type IOSAccount struct {
	bun.BaseModel `bun:"table:ios_accounts"`

	ID        string    `bun:"id,pk" json:"id"`
	AppleID   string    `bun:"apple_id,notnull,unique" json:"apple_id" validate:"required,email"`
	Password  string    `bun:"password,notnull" json:"password" validate:"required"`
	Region    string    `bun:"region,notnull" json:"region" validate:"required,len=2"`
	Status    string    `bun:"status,notnull" json:"status" validate:"required,oneof=available assigned disabled"`
	Notes     string    `bun:"notes" json:"notes"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (a *IOSAccount) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampRecord(query, &a.ID, &a.CreatedAt, &a.UpdatedAt)
	return nil
}

// VirtualCard keeps only the non-sensitive part of a prepaid card.
type VirtualCard struct {
	bun.BaseModel `bun:"table:virtual_cards"`

	ID         string    `bun:"id,pk" json:"id"`
	CardHolder string    `bun:"card_holder,notnull" json:"card_holder" validate:"required"`
	Last4      string    `bun:"last4,notnull" json:"last4" validate:"required,len=4,numeric"`
	Brand      string    `bun:"brand,notnull" json:"brand" validate:"required"`
	Expiry     string    `bun:"expiry,notnull" json:"expiry" validate:"required,len=5"`
	Balance    float64   `bun:"balance,notnull" json:"balance" validate:"gte=0"`
	Status     string    `bun:"status,notnull" json:"status" validate:"required,oneof=available assigned disabled"`
	Notes      string    `bun:"notes" json:"notes"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (c *VirtualCard) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampRecord(query, &c.ID, &c.CreatedAt, &c.UpdatedAt)
	return nil
}

// Address is a billing address used together with virtual cards.
type Address struct {
	bun.BaseModel `bun:"table:addresses"`

	ID         string    `bun:"id,pk" json:"id"`
	Line1      string    `bun:"line1,notnull" json:"line1" validate:"required"`
	Line2      string    `bun:"line2" json:"line2"`
	City       string    `bun:"city,notnull" json:"city" validate:"required"`
	State      string    `bun:"state" json:"state"`
	PostalCode string    `bun:"postal_code,notnull" json:"postal_code" validate:"required"`
	Country    string    `bun:"country,notnull" json:"country" validate:"required,len=2"`
	Notes      string    `bun:"notes" json:"notes"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (a *Address) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampRecord(query, &a.ID, &a.CreatedAt, &a.UpdatedAt)
	return nil
}
