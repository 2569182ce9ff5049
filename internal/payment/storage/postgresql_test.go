package storage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupStore(t *testing.T) *PostgreSQLStore {
	t.Helper()
	sqldb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	_, err = bunDB.NewCreateTable().Model((*models.PaymentLog)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return NewPostgreSQLStore(bunDB, logger.Nop())
}

func TestSavePaymentLog_OnePerEvent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	exists, err := store.HasEvent(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, exists)

	entry := &models.PaymentLog{StripeEventID: "evt_1", EventType: "checkout.session.completed", Payload: `{"id":"evt_1"}`}
	require.NoError(t, store.SavePaymentLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	dup := &models.PaymentLog{StripeEventID: "evt_1", EventType: "checkout.session.completed", Payload: `{}`}
	require.NoError(t, store.SavePaymentLog(ctx, dup))

	exists, err = store.HasEvent(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)

	logs, err := store.ListPaymentLogs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, `{"id":"evt_1"}`, logs[0].Payload)
}

func TestHealthCheck(t *testing.T) {
	store := setupStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}
