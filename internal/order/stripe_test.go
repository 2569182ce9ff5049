package order_test

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/notdp/franxx-store-sub000/internal/metrics"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var accountEmailPattern = regexp.MustCompile(`^chatgpt\.user\..*@gmail\.com$`)

func deliver(t *testing.T, f *fixture, eventID, eventType string, object map[string]interface{}) (*models.WebhookAck, error) {
	t.Helper()
	payload := eventPayload(t, eventID, eventType, object)
	return f.svc.HandleStripeWebhook(context.Background(), payload, sign(payload))
}

func webhookError(t *testing.T, err error) *order.WebhookError {
	t.Helper()
	var werr *order.WebhookError
	require.True(t, errors.As(err, &werr), "expected *WebhookError, got %v", err)
	return werr
}

func TestWebhook_PaidCompletionDeliversAccount(t *testing.T) {
	f := newFixture(t)
	f.kafka.On("PublishOrderCreated", mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.SessionID == "cs_test_1" && e.Status == models.OrderStatusPending
	})).Return(nil).Once()
	f.kafka.On("PublishOrderDelivered", mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.SessionID == "cs_test_1" && e.Account != nil
	})).Return(nil).Once()

	ack, err := deliver(t, f, "evt_1", "checkout.session.completed", checkoutSession("cs_test_1", "paid"))
	require.NoError(t, err)
	assert.Equal(t, &models.WebhookAck{Received: true}, ack)

	stored, err := f.orders.GetOrderBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, 98.0, stored.Amount)
	assert.Equal(t, "usd", stored.Currency)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "p1", stored.PackageID)
	assert.Equal(t, "Plus", stored.PackageName)
	assert.Equal(t, "buyer@example.com", stored.Email)
	assert.Equal(t, "+15550001", stored.Phone)
	assert.Equal(t, "cus_test_1", stored.StripeCustomerID)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)
	require.NotNil(t, stored.Account)
	assert.Regexp(t, accountEmailPattern, stored.Account.Email)
	assert.Len(t, stored.Account.Password, 16)
	assert.False(t, stored.DeliveredAt.IsZero())

	assert.Equal(t, 1, f.paymentLogCount(t, "evt_1"))
	require.Len(t, f.emitter.orders, 2)
	assert.Equal(t, models.OrderStatusDelivered, f.emitter.orders[1].Status)
	f.kafka.AssertExpectations(t)

	assert.Empty(t, f.redis.Keys(), "session lock must be released")
}

func TestWebhook_UnpaidCompletionWaitsForAsyncSuccess(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	_, err := deliver(t, f, "evt_c", "checkout.session.completed", checkoutSession("cs_async", "unpaid"))
	require.NoError(t, err)

	pending, err := f.orders.GetOrderBySessionID(ctx, "cs_async")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, pending.Status)
	assert.Equal(t, models.PaymentStatusPending, pending.PaymentStatus)
	assert.Nil(t, pending.Account)

	_, err = deliver(t, f, "evt_s", "checkout.session.async_payment_succeeded", checkoutSession("cs_async", "paid"))
	require.NoError(t, err)

	delivered, err := f.orders.GetOrderBySessionID(ctx, "cs_async")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.Account)
	assert.Equal(t, pending.ID, delivered.ID)
}

func TestWebhook_RedeliveryIsAcknowledgedAsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	_, err := deliver(t, f, "evt_dup", "checkout.session.completed", checkoutSession("cs_dup", "paid"))
	require.NoError(t, err)
	first, err := f.orders.GetOrderBySessionID(ctx, "cs_dup")
	require.NoError(t, err)

	ack, err := deliver(t, f, "evt_dup", "checkout.session.completed", checkoutSession("cs_dup", "paid"))
	require.NoError(t, err)
	assert.Equal(t, &models.WebhookAck{Received: true, Duplicate: true}, ack)

	second, err := f.orders.GetOrderBySessionID(ctx, "cs_dup")
	require.NoError(t, err)
	assert.Equal(t, first.Account, second.Account, "credentials must not be regenerated")
	assert.Equal(t, 1, f.paymentLogCount(t, "evt_dup"))
}

func TestWebhook_LateAsyncSuccessKeepsExistingAccount(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	_, err := deliver(t, f, "evt_a", "checkout.session.completed", checkoutSession("cs_twice", "paid"))
	require.NoError(t, err)
	first, err := f.orders.GetOrderBySessionID(ctx, "cs_twice")
	require.NoError(t, err)

	_, err = deliver(t, f, "evt_b", "checkout.session.async_payment_succeeded", checkoutSession("cs_twice", "paid"))
	require.NoError(t, err)

	second, err := f.orders.GetOrderBySessionID(ctx, "cs_twice")
	require.NoError(t, err)
	assert.Equal(t, first.Account, second.Account)
	f.kafka.AssertNumberOfCalls(t, "PublishOrderDelivered", 1)
}

func TestWebhook_AsyncFailureMarksOrderFailed(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	_, err := deliver(t, f, "evt_c", "checkout.session.completed", checkoutSession("cs_fail", "unpaid"))
	require.NoError(t, err)

	_, err = deliver(t, f, "evt_f", "checkout.session.async_payment_failed", checkoutSession("cs_fail", "unpaid"))
	require.NoError(t, err)

	failed, err := f.orders.GetOrderBySessionID(ctx, "cs_fail")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, failed.Status)
	assert.Equal(t, models.PaymentStatusFailed, failed.PaymentStatus)
	f.kafka.AssertCalled(t, "PublishOrderFailed", mock.Anything)
}

func TestWebhook_FailureOverwritesDeliveredOrder(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()

	_, err := deliver(t, f, "evt_c", "checkout.session.completed", checkoutSession("cs_over", "paid"))
	require.NoError(t, err)
	_, err = deliver(t, f, "evt_f", "checkout.session.async_payment_failed", checkoutSession("cs_over", "paid"))
	require.NoError(t, err)

	stored, err := f.orders.GetOrderBySessionID(context.Background(), "cs_over")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, "evt_bad", "checkout.session.completed", checkoutSession("cs_bad", "paid"))

	_, err := f.svc.HandleStripeWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	werr := webhookError(t, err)
	assert.Equal(t, http.StatusBadRequest, werr.StatusCode)
	assert.Equal(t, order.CategoryValidation, werr.Category)
	assert.Contains(t, werr.PublicError, "signature")

	_, err = f.orders.GetOrderBySessionID(context.Background(), "cs_bad")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
	assert.Equal(t, 0, f.paymentLogCount(t, "evt_bad"))
	f.kafka.AssertNotCalled(t, "PublishOrderCreated", mock.Anything)
}

func TestWebhook_MissingSignatureHeader(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, "evt_nosig", "checkout.session.completed", checkoutSession("cs_nosig", "paid"))

	_, err := f.svc.HandleStripeWebhook(context.Background(), payload, "")
	werr := webhookError(t, err)
	assert.Equal(t, http.StatusBadRequest, werr.StatusCode)
	assert.Contains(t, werr.PublicError, "Missing Stripe-Signature header")
}

// Known gap: without a webhook secret any well-formed payload is trusted.
func TestWebhook_WithoutSecretAcceptsForgedPayload(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	f.svc.WebhookSecret = ""

	payload := eventPayload(t, "evt_forged", "checkout.session.completed", checkoutSession("cs_forged", "paid"))
	ack, err := f.svc.HandleStripeWebhook(context.Background(), payload, "")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	stored, err := f.orders.GetOrderBySessionID(context.Background(), "cs_forged")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
}

func TestWebhook_WithoutSecretRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	f.svc.WebhookSecret = ""

	_, err := f.svc.HandleStripeWebhook(context.Background(), []byte("not json"), "")
	werr := webhookError(t, err)
	assert.Equal(t, http.StatusBadRequest, werr.StatusCode)
	assert.Equal(t, "Invalid webhook payload", werr.PublicError)
}

func TestWebhook_LockedSessionAsksForRetry(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	held, err := f.locks.LockSession(ctx, "cs_locked", "evt_other")
	require.NoError(t, err)
	require.True(t, held)

	_, err = deliver(t, f, "evt_l", "checkout.session.completed", checkoutSession("cs_locked", "paid"))
	werr := webhookError(t, err)
	assert.Equal(t, http.StatusConflict, werr.StatusCode)
	assert.ErrorIs(t, err, order.ErrSessionLocked)
	assert.Equal(t, 0, f.paymentLogCount(t, "evt_l"))

	require.NoError(t, f.locks.UnlockSession(ctx, "cs_locked", "evt_other"))

	_, err = deliver(t, f, "evt_l", "checkout.session.completed", checkoutSession("cs_locked", "paid"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.paymentLogCount(t, "evt_l"))
}

func TestWebhook_RedisOutageProcessesUnlocked(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	f.redis.Close()

	_, err := deliver(t, f, "evt_r", "checkout.session.completed", checkoutSession("cs_redis_down", "paid"))
	require.NoError(t, err)

	stored, err := f.orders.GetOrderBySessionID(context.Background(), "cs_redis_down")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
}

func TestWebhook_FulfillmentFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.allowPublishes()
	ctx := context.Background()

	f.svc.Credentials = order.CredentialGeneratorFunc(func(time.Time) (*models.Account, error) {
		return nil, errors.New("entropy exhausted")
	})

	_, err := deliver(t, f, "evt_retry", "checkout.session.completed", checkoutSession("cs_retry", "paid"))
	werr := webhookError(t, err)
	assert.Equal(t, http.StatusInternalServerError, werr.StatusCode)
	assert.Equal(t, "Webhook handler failed", werr.PublicError)
	assert.ErrorIs(t, err, order.ErrFulfillment)

	// Nothing half-done: the order exists but is not delivered, and the event is not audited.
	stored, err := f.orders.GetOrderBySessionID(ctx, "cs_retry")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Nil(t, stored.Account)
	assert.Equal(t, 0, f.paymentLogCount(t, "evt_retry"))

	f.svc.Credentials = order.RandomCredentials
	_, err = deliver(t, f, "evt_retry", "checkout.session.completed", checkoutSession("cs_retry", "paid"))
	require.NoError(t, err)

	stored, err = f.orders.GetOrderBySessionID(ctx, "cs_retry")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.Account)
	assert.Equal(t, 1, f.paymentLogCount(t, "evt_retry"))
}

func TestWebhook_PaymentIntentEventsAreOnlyLogged(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ id, typ string }{
		{"evt_pi_ok", "payment_intent.succeeded"},
		{"evt_pi_fail", "payment_intent.payment_failed"},
		{"evt_other", "customer.created"},
	} {
		ack, err := deliver(t, f, tc.id, tc.typ, map[string]interface{}{"id": "pi_1", "object": "payment_intent"})
		require.NoError(t, err, tc.typ)
		assert.True(t, ack.Received)
		assert.Equal(t, 1, f.paymentLogCount(t, tc.id))
	}

	f.kafka.AssertNotCalled(t, "PublishOrderCreated", mock.Anything)
	assert.Empty(t, f.emitter.orders)
}

func TestWebhook_MetricLabelsStayBounded(t *testing.T) {
	f := newFixture(t)
	f.svc.WebhookSecret = ""

	reader := sdkmetric.NewManualReader()
	recorder, err := metrics.NewWithMeter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)
	f.svc.Metrics = recorder

	for _, tc := range []struct{ id, typ string }{
		{"evt_pi", "payment_intent.succeeded"},
		{"evt_junk_1", "customer.created"},
		{"evt_junk_2", "made.up.type.8f3a"},
		{"evt_junk_3", "checkout.session.totally_new"},
	} {
		payload := eventPayload(t, tc.id, tc.typ, map[string]interface{}{"id": "pi_1", "object": "payment_intent"})
		_, err := f.svc.HandleStripeWebhook(context.Background(), payload, "")
		require.NoError(t, err, tc.typ)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "franxx.webhook.events" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("event_type")
				counts[v.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"payment_intent.succeeded": 1, "other": 3}, counts)
}

func TestWebhook_KafkaFailureDoesNotFailDelivery(t *testing.T) {
	f := newFixture(t)
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(errors.New("broker down"))
	f.kafka.On("PublishOrderDelivered", mock.Anything).Return(errors.New("broker down"))

	ack, err := deliver(t, f, "evt_k", "checkout.session.completed", checkoutSession("cs_kafka", "paid"))
	require.NoError(t, err)
	assert.True(t, ack.Received)
}
