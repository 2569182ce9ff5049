package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notdp/franxx-store-sub000/internal/metrics"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/utils"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const publicHandlerFailure = "Webhook handler failed"

// HandleStripeWebhook verifies, deduplicates and dispatches one Stripe delivery.
// Errors are *WebhookError values carrying the HTTP status to answer with.
func (s *OrderService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*models.WebhookAck, error) {
	start := time.Now()

	event, werr := s.constructEvent(payload, signature)
	if werr != nil {
		s.Metrics.WebhookHandled(ctx, "unknown", metrics.OutcomeRejected, time.Since(start))
		return nil, werr
	}
	eventType := string(event.Type)
	label := metricEventType(event.Type)

	s.logger.LogWebhook(eventType, event.ID, fmt.Sprintf("received (created %s)",
		utils.UnixTimeToTime(event.Created).Format(time.RFC3339)))

	seen, err := s.Payments.HasEvent(ctx, event.ID)
	if err != nil {
		// FulfillOrder is idempotent, so reprocessing is the safe direction.
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Dedup lookup failed for %s, processing anyway: %v", event.ID, err))
	}
	if seen {
		s.logger.LogWebhook(eventType, event.ID, "already processed")
		s.Metrics.WebhookHandled(ctx, label, metrics.OutcomeDuplicate, time.Since(start))
		return &models.WebhookAck{Received: true, Duplicate: true}, nil
	}

	if err := s.dispatch(ctx, &event); err != nil {
		var webhookErr *WebhookError
		if errors.As(err, &webhookErr) {
			outcome := metrics.OutcomeFailed
			if webhookErr.Category == CategoryConflict {
				outcome = metrics.OutcomeLocked
			}
			s.Metrics.WebhookHandled(ctx, label, outcome, time.Since(start))
			return nil, webhookErr
		}

		s.logger.Error("WEBHOOK", fmt.Sprintf("Handler failed for %s (%s): %v", event.ID, eventType, err))
		s.Metrics.WebhookHandled(ctx, label, metrics.OutcomeFailed, time.Since(start))
		return nil, &WebhookError{
			Category:      CategoryProcessing,
			StatusCode:    http.StatusInternalServerError,
			PublicError:   publicHandlerFailure,
			InternalError: fmt.Sprintf("handle %s (%s): %v", event.ID, eventType, err),
			OriginalErr:   err,
		}
	}

	s.LogPaymentEvent(ctx, &event, payload)
	s.Metrics.WebhookHandled(ctx, label, metrics.OutcomeProcessed, time.Since(start))
	return &models.WebhookAck{Received: true}, nil
}

// metricEventType keeps the metric label set bounded: event types this
// service handles keep their name and everything else is "other".
func metricEventType(t stripe.EventType) string {
	switch t {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed:
		return string(t)
	}
	return "other"
}

func (s *OrderService) constructEvent(payload []byte, signature string) (stripe.Event, *WebhookError) {
	if s.WebhookSecret == "" {
		s.logger.LogSecurity("WEBHOOK", "STRIPE_WEBHOOK_SECRET is not set, accepting unverified event")

		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
			if err == nil {
				err = errors.New("event has no id")
			}
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to parse webhook payload: %v", err))
			return event, &WebhookError{
				Category:      CategoryValidation,
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid webhook payload",
				InternalError: fmt.Sprintf("Failed to parse webhook payload: %v", err),
				OriginalErr:   err,
			}
		}
		return event, nil
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.WebhookSecret, opts)
	if err != nil {
		message := "Webhook signature verification failed"
		if signature == "" {
			message = "Missing Stripe-Signature header"
		}
		s.logger.LogSecurity("WEBHOOK", fmt.Sprintf("%s: %v", message, err))
		return event, &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   fmt.Sprintf("%s: %v", message, err),
			InternalError: fmt.Sprintf("%s: %v", message, err),
			OriginalErr:   err,
		}
	}
	return event, nil
}

func (s *OrderService) dispatch(ctx context.Context, event *stripe.Event) error {
	eventType := string(event.Type)

	if !strings.HasPrefix(eventType, "checkout.session.") {
		switch event.Type {
		case stripe.EventTypePaymentIntentSucceeded:
			s.logger.LogWebhook(eventType, event.ID, "payment intent succeeded")
		case stripe.EventTypePaymentIntentPaymentFailed:
			s.logger.LogWebhook(eventType, event.ID, "payment intent failed")
		default:
			s.logger.LogWebhook(eventType, event.ID, "unhandled event type")
		}
		return nil
	}

	var session stripe.CheckoutSession
	if event.Data == nil {
		return &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("event %s has no data", event.ID),
		}
	}
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
		if err == nil {
			err = errors.New("session has no id")
		}
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
		return &WebhookError{
			Category:      CategoryValidation,
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
			OriginalErr:   err,
		}
	}

	release, err := s.lockSession(ctx, session.ID, event.ID)
	if err != nil {
		return err
	}
	defer release()

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		if _, err := s.CreateOrder(ctx, &session); err != nil {
			return err
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			if _, err := s.FulfillOrder(ctx, &session); err != nil {
				return err
			}
		}

	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		if _, err := s.FulfillOrder(ctx, &session); err != nil {
			return err
		}

	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		if err := s.HandleFailedPayment(ctx, &session); err != nil {
			return err
		}

	default:
		s.logger.LogWebhook(eventType, event.ID, "unhandled checkout session event")
	}

	return nil
}

// lockSession serializes deliveries for one checkout session. When Redis is
// unreachable processing continues unlocked.
func (s *OrderService) lockSession(ctx context.Context, sessionID, owner string) (func(), error) {
	noop := func() {}
	if s.Redis == nil {
		return noop, nil
	}

	ok, err := s.Redis.LockSession(ctx, sessionID, owner)
	if err != nil {
		s.logger.Warn("REDIS", fmt.Sprintf("Session lock unavailable for %s, continuing unlocked: %v", sessionID, err))
		return noop, nil
	}
	if !ok {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Session %s is locked by another delivery, asking Stripe to retry %s", sessionID, owner))
		return nil, &WebhookError{
			Category:      CategoryConflict,
			StatusCode:    http.StatusConflict,
			PublicError:   "Checkout session is being processed",
			InternalError: fmt.Sprintf("session %s locked, event %s deferred", sessionID, owner),
			OriginalErr:   ErrSessionLocked,
		}
	}

	return func() {
		// the request context may already be cancelled
		if err := s.Redis.UnlockSession(context.WithoutCancel(ctx), sessionID, owner); err != nil {
			s.logger.Warn("REDIS", fmt.Sprintf("Failed to release session lock %s: %v", sessionID, err))
		}
	}, nil
}
