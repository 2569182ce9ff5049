package order_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/notdp/franxx-store-sub000/internal/order/db"
	orderredis "github.com/notdp/franxx-store-sub000/internal/order/redis"
	"github.com/notdp/franxx-store-sub000/internal/payment/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

const testWebhookSecret = "whsec_test_secret"

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishOrderCreated(ctx context.Context, event models.OrderEvent) error {
	return m.Called(event).Error(0)
}

func (m *MockKafkaPublisher) PublishOrderDelivered(ctx context.Context, event models.OrderEvent) error {
	return m.Called(event).Error(0)
}

func (m *MockKafkaPublisher) PublishOrderFailed(ctx context.Context, event models.OrderEvent) error {
	return m.Called(event).Error(0)
}

type recordingEmitter struct {
	orders []models.Order
}

func (e *recordingEmitter) Emit(o models.Order) {
	e.orders = append(e.orders, o)
}

type fixture struct {
	svc     *order.OrderService
	bun     *bun.DB
	orders  *db.DB
	kafka   *MockKafkaPublisher
	emitter *recordingEmitter
	redis   *miniredis.Miniredis
	locks   *orderredis.Redis
}

// newFixture wires the service to in-memory SQLite and Redis. Kafka publishes
// are accepted for any event unless the test sets its own expectations first.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqldb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Order)(nil), (*models.PaymentLog)(nil)} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	log := logger.Nop()
	orders := db.New(bunDB)
	locks := orderredis.NewRedis(client, 0)
	kafka := &MockKafkaPublisher{}
	emitter := &recordingEmitter{}

	svc := order.NewOrderService(orders, storage.NewPostgreSQLStore(bunDB, log), locks, kafka, log)
	svc.Events = emitter
	svc.WebhookSecret = testWebhookSecret

	return &fixture{svc: svc, bun: bunDB, orders: orders, kafka: kafka, emitter: emitter, redis: mr, locks: locks}
}

func (f *fixture) allowPublishes() {
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil).Maybe()
	f.kafka.On("PublishOrderDelivered", mock.Anything).Return(nil).Maybe()
	f.kafka.On("PublishOrderFailed", mock.Anything).Return(nil).Maybe()
}

func (f *fixture) paymentLogCount(t *testing.T, eventID string) int {
	t.Helper()
	n, err := f.bun.NewSelect().
		Model((*models.PaymentLog)(nil)).
		Where("stripe_event_id = ?", eventID).
		Count(context.Background())
	require.NoError(t, err)
	return n
}

func checkoutSession(id string, paymentStatus string) map[string]interface{} {
	return map[string]interface{}{
		"id":             id,
		"object":         "checkout.session",
		"payment_status": paymentStatus,
		"amount_total":   9800,
		"currency":       "usd",
		"customer":       "cus_test_1",
		"customer_details": map[string]interface{}{
			"email": "buyer@example.com",
			"phone": "+15550001",
		},
		"metadata": map[string]string{
			"user_id":      "u1",
			"package_id":   "p1",
			"package_name": "Plus",
		},
	}
}

func eventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"created":     1700000000,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Header
}
