package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order unless one already exists for its Stripe session,
// and returns the stored row either way.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	res, err := d.Bun.NewInsert().
		Model(order).
		On("CONFLICT (stripe_session_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}
	created := true
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		created = false
	}

	stored, err := d.GetOrderBySessionID(ctx, order.StripeSessionID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

func (d *DB) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("stripe_session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

// GetOrderForGuest matches the order id together with the phone captured at checkout.
func (d *DB) GetOrderForGuest(ctx context.Context, id, phone string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Where("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrOrderNotFound)
	}
	return &order, nil
}

func (d *DB) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrders pages through all orders, optionally filtered by status.
func (d *DB) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, int, error) {
	orders := []models.Order{}
	q := d.Bun.NewSelect().Model(&orders).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
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
	return orders, total, nil
}

// FulfillOrder stores the credential payload and flips both status fields in one
// transaction. An order that is already delivered is returned untouched with
// changed=false.
func (d *DB) FulfillOrder(ctx context.Context, sessionID string, account *models.Account, at time.Time) (*models.Order, bool, error) {
	var (
		order   models.Order
		changed bool
	)
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&order).
			Where("stripe_session_id = ?", sessionID).
			Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return notFound(err, models.ErrOrderNotFound)
		}
		if order.Delivered() {
			return nil
		}

		order.Status = models.OrderStatusDelivered
		order.PaymentStatus = models.PaymentStatusSucceeded
		order.Account = account
		order.DeliveredAt = at
		order.UpdatedAt = at

		_, err := tx.NewUpdate().
			Model(&order).
			Column("status", "payment_status", "account", "delivered_at", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &order, changed, nil
}

// MarkFailed sets both status fields to failed whatever their previous value.
func (d *DB) MarkFailed(ctx context.Context, sessionID string) (*models.Order, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusFailed).
		Set("payment_status = ?", models.PaymentStatusFailed).
		Set("updated_at = ?", time.Now().UTC()).
		Where("stripe_session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrOrderNotFound
	}
	return d.GetOrderBySessionID(ctx, sessionID)
}

// UpdateOrderStatus is the back-office override.
func (d *DB) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, payment models.PaymentStatus) (*models.Order, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if payment != "" {
		q = q.Set("payment_status = ?", payment)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrOrderNotFound
	}
	return d.GetOrderByID(ctx, id)
}

// ---------------- PRODUCTS ----------------

func (d *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrProductNotFound)
	}
	return &product, nil
}

func (d *DB) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := d.Bun.NewSelect().
		Model(&products).
		Where("active = ?", true).
		Order("sort_order ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ---------------- USERS ----------------

func (d *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, models.ErrRecordNotFound)
	}
	return &user, nil
}

// EnsureUser creates the profile row for an authenticated user on first sight.
func (d *DB) EnsureUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := d.Bun.NewInsert().
		Model(user).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return d.GetUser(ctx, user.ID)
}

func (d *DB) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("stripe_customer_id = ?", customerID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

// GetUserRole returns RoleUser for ids without a profile row.
func (d *DB) GetUserRole(ctx context.Context, userID string) (string, error) {
	user, err := d.GetUser(ctx, userID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// SetUserRole changes a user's role. Callers must drop any cached role.
func (d *DB) SetUserRole(ctx context.Context, userID, role string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}
