package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/notdp/franxx-store-sub000"

// Outcomes recorded for webhook deliveries.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeLocked    = "locked"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Recorder holds the store's business instruments. A nil *Recorder records nothing.
type Recorder struct {
	webhookEvents   metric.Int64Counter
	webhookDuration metric.Float64Histogram
	orderStatus     metric.Int64Counter
	checkouts       metric.Int64Counter
}

// New builds the instruments on the global MeterProvider.
func New() (*Recorder, error) {
	return NewWithMeter(otel.Meter(meterName))
}

func NewWithMeter(meter metric.Meter) (*Recorder, error) {
	webhookEvents, err := meter.Int64Counter("franxx.webhook.events",
		metric.WithDescription("Stripe webhook deliveries by event type and outcome"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}
	webhookDuration, err := meter.Float64Histogram("franxx.webhook.duration",
		metric.WithDescription("Time spent handling a Stripe webhook delivery"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	orderStatus, err := meter.Int64Counter("franxx.order.transitions",
		metric.WithDescription("Order status transitions"),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, err
	}
	checkouts, err := meter.Int64Counter("franxx.checkout.sessions",
		metric.WithDescription("Checkout sessions created per package"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		webhookEvents:   webhookEvents,
		webhookDuration: webhookDuration,
		orderStatus:     orderStatus,
		checkouts:       checkouts,
	}, nil
}

func (r *Recorder) WebhookHandled(ctx context.Context, eventType, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)
	r.webhookEvents.Add(ctx, 1, attrs)
	r.webhookDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (r *Recorder) OrderTransition(ctx context.Context, status string) {
	if r == nil {
		return
	}
	r.orderStatus.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (r *Recorder) CheckoutCreated(ctx context.Context, packageID string) {
	if r == nil {
		return
	}
	r.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("package_id", packageID)))
}
