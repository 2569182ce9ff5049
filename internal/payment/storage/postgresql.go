package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/uptrace/bun"
)

type PostgreSQLStore struct {
	db  *bun.DB
	log *logger.Logger
}

var _ Store = (*PostgreSQLStore)(nil)

// NewPostgreSQLStore wraps an already opened connection. The payment_logs
// table comes from the schema migrations.
func NewPostgreSQLStore(db *bun.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

// SavePaymentLog appends an audit entry. A second entry for the same Stripe
// event is ignored.
func (s *PostgreSQLStore) SavePaymentLog(ctx context.Context, entry *models.PaymentLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (stripe_event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment log %s: %v", entry.StripeEventID, err))
		return fmt.Errorf("failed to save payment log: %w", err)
	}

	s.log.LogDatabase("INSERT", "payment_logs", fmt.Sprintf("Logged %s (%s)", entry.StripeEventID, entry.EventType))
	return nil
}

func (s *PostgreSQLStore) HasEvent(ctx context.Context, stripeEventID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.PaymentLog)(nil)).
		Where("stripe_event_id = ?", stripeEventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check payment log: %w", err)
	}
	return exists, nil
}

func (s *PostgreSQLStore) ListPaymentLogs(ctx context.Context, limit, offset int) ([]models.PaymentLog, error) {
	logs := []models.PaymentLog{}
	q := s.db.NewSelect().Model(&logs).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list payment logs: %w", err)
	}
	return logs, nil
}

func (s *PostgreSQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
