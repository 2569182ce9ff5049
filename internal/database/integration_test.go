//go:build integration

package database_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/database"
	"github.com/notdp/franxx-store-sub000/internal/database/migrations"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order/db"
	"github.com/notdp/franxx-store-sub000/internal/payment/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

func setupPostgres(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("franxx"),
		postgres.WithUsername("franxx"),
		postgres.WithPassword("franxx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := logger.Nop()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 5, MaxLifetime: time.Minute}, log)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: migrationsDir(), AutoMigrate: true}, log)
	require.NoError(t, runner.Run())

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)

	return bunDB
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	bunDB := setupPostgres(t)
	ctx := context.Background()
	store := db.New(bunDB)

	products, err := store.ListActiveProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "chatgpt-plus", products[0].ID)
	assert.Equal(t, []string{"GPT-4 access", "Priority availability", "Instant delivery"}, products[0].Features)

	first, created, err := store.CreateOrder(ctx, &models.Order{
		StripeSessionID: "cs_pg_1", PackageID: "chatgpt-plus", PackageName: "ChatGPT Plus",
		Amount: 98, Currency: "usd", Email: "buyer@example.com",
		Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPaid,
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.CreateOrder(ctx, &models.Order{
		StripeSessionID: "cs_pg_1", Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPaid,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	account := &models.Account{Email: "chatgpt.user.1@gmail.com", Password: "Abc123!@#xyzXYZ0"}
	delivered, changed, err := store.FulfillOrder(ctx, "cs_pg_1", account, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)

	_, changed, err = store.FulfillOrder(ctx, "cs_pg_1", &models.Account{Email: "other@gmail.com"}, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := store.GetOrderBySessionID(ctx, "cs_pg_1")
	require.NoError(t, err)
	require.NotNil(t, stored.Account)
	assert.Equal(t, account.Email, stored.Account.Email)
}

func TestPostgres_PaymentLogIsIdempotent(t *testing.T) {
	bunDB := setupPostgres(t)
	ctx := context.Background()
	logs := storage.NewPostgreSQLStore(bunDB, logger.Nop())

	entry := models.PaymentLog{StripeEventID: "evt_pg_1", EventType: "checkout.session.completed", Payload: "{}"}
	require.NoError(t, logs.SavePaymentLog(ctx, &entry))
	dup := models.PaymentLog{StripeEventID: "evt_pg_1", EventType: "checkout.session.completed", Payload: "{}"}
	require.NoError(t, logs.SavePaymentLog(ctx, &dup))

	seen, err := logs.HasEvent(ctx, "evt_pg_1")
	require.NoError(t, err)
	assert.True(t, seen)

	all, err := logs.ListPaymentLogs(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	require.NoError(t, logs.HealthCheck(ctx))
}
