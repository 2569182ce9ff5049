package storage

import (
	"context"

	"github.com/notdp/franxx-store-sub000/internal/models"
)

// Store is the payment audit ledger. It doubles as the idempotency record
// for webhook deliveries.
type Store interface {
	SavePaymentLog(ctx context.Context, entry *models.PaymentLog) error
	HasEvent(ctx context.Context, stripeEventID string) (bool, error)
	ListPaymentLogs(ctx context.Context, limit, offset int) ([]models.PaymentLog, error)
	HealthCheck(ctx context.Context) error
}
