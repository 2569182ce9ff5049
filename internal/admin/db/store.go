package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/uptrace/bun"
)

// Store is a CRUD repository for one back-office table. T is a bun model whose
// primary key column is "id".
type Store[T any] struct {
	db      *bun.DB
	orderBy string
}

func NewStore[T any](db *bun.DB, orderBy string) *Store[T] {
	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	return &Store[T]{db: db, orderBy: orderBy}
}

// List pages through the table and reports the total row count.
func (s *Store[T]) List(ctx context.Context, limit, offset int) ([]T, int, error) {
	items := []T{}
	q := s.db.NewSelect().Model(&items).OrderExpr(s.orderBy)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	item := new(T)
	err := s.db.NewSelect().Model(item).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store[T]) Create(ctx context.Context, item *T) error {
	if _, err := s.db.NewInsert().Model(item).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateRecord
		}
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Update overwrites every column of row id except its key and creation time.
func (s *Store[T]) Update(ctx context.Context, id string, item *T) (*T, error) {
	res, err := s.db.NewUpdate().
		Model(item).
		ExcludeColumn("id", "created_at").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateRecord
		}
		return nil, fmt.Errorf("update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrRecordNotFound
	}
	return s.Get(ctx, id)
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*T)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation reports a unique-key conflict from Postgres (23505) or SQLite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
