package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecorder_CountsWebhooksAndTransitions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r, err := NewWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	r.WebhookHandled(ctx, "checkout.session.completed", OutcomeProcessed, 20*time.Millisecond)
	r.WebhookHandled(ctx, "checkout.session.completed", OutcomeDuplicate, time.Millisecond)
	r.OrderTransition(ctx, "delivered")
	r.CheckoutCreated(ctx, "plus")

	got := collect(t, reader)

	events, ok := got["franxx.webhook.events"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, events.DataPoints, 2)

	transitions, ok := got["franxx.order.transitions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, transitions.DataPoints, 1)
	assert.Equal(t, int64(1), transitions.DataPoints[0].Value)

	_, ok = got["franxx.webhook.duration"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
	assert.Contains(t, got, "franxx.checkout.sessions")
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.WebhookHandled(context.Background(), "x", OutcomeFailed, time.Second)
		r.OrderTransition(context.Background(), "failed")
		r.CheckoutCreated(context.Background(), "p")
	})
}
