package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name" validate:"required"`
	Description string    `bun:"description" json:"description"`
	Category    string    `bun:"category,notnull" json:"category" validate:"required,oneof=chatgpt claude"`
	Price       float64   `bun:"price,notnull" json:"price" validate:"gte=0"`
	SalePrice   float64   `bun:"sale_price,notnull" json:"sale_price" validate:"gte=0"`
	Currency    string    `bun:"currency,notnull" json:"currency" validate:"required,len=3"`
	Features    []string  `bun:"features,type:jsonb" json:"features"`
	Active      bool      `bun:"active,notnull" json:"active"`
	SortOrder   int       `bun:"sort_order,notnull" json:"sort_order"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Product)(nil)

func (p *Product) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampRecord(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
	return nil
}

// ChargeAmount is the price the customer pays: the sale price when set.
func (p *Product) ChargeAmount() float64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}

// stampRecord fills generated columns shared by the back-office tables.
func stampRecord(query bun.Query, id *string, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == "" {
			*id = uuid.NewString()
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		*updatedAt = now
	case *bun.UpdateQuery:
		*updatedAt = now
	}
}
