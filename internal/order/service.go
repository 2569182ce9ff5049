package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/metrics"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/stripe/stripe-go/v82"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetOrderForGuest(ctx context.Context, id, phone string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, int, error)
	FulfillOrder(ctx context.Context, sessionID string, account *models.Account, at time.Time) (*models.Order, bool, error)
	MarkFailed(ctx context.Context, sessionID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, payment models.PaymentStatus) (*models.Order, error)
}

type PaymentLogStore interface {
	SavePaymentLog(ctx context.Context, entry *models.PaymentLog) error
	HasEvent(ctx context.Context, stripeEventID string) (bool, error)
}

type SessionLocker interface {
	LockSession(ctx context.Context, sessionID, owner string) (bool, error)
	UnlockSession(ctx context.Context, sessionID, owner string) error
}

type KafkaPublisher interface {
	PublishOrderCreated(ctx context.Context, event models.OrderEvent) error
	PublishOrderDelivered(ctx context.Context, event models.OrderEvent) error
	PublishOrderFailed(ctx context.Context, event models.OrderEvent) error
}

// StatusEmitter pushes order changes to live subscribers (SSE).
type StatusEmitter interface {
	Emit(order models.Order)
}

type OrderService struct {
	DB          DBLayer
	Payments    PaymentLogStore
	Redis       SessionLocker
	Kafka       KafkaPublisher
	Events      StatusEmitter
	Credentials CredentialGenerator
	Metrics     *metrics.Recorder

	// WebhookSecret enables signature verification. Empty means unverified events.
	WebhookSecret string

	logger *logger.Logger
	now    func() time.Time
}

func NewOrderService(db DBLayer, payments PaymentLogStore, redis SessionLocker, kafka KafkaPublisher, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:          db,
		Payments:    payments,
		Redis:       redis,
		Kafka:       kafka,
		Credentials: RandomCredentials,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ---------------- ORDER MUTATIONS ----------------

// CreateOrder records the checkout session as a pending order. A session that
// was already recorded yields the stored row.
func (s *OrderService) CreateOrder(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	order, created, err := s.DB.CreateOrder(ctx, orderFromSession(session))
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Failed to create order for session %s: %v", session.ID, err))
		return nil, fmt.Errorf("create order for session %s: %w", session.ID, err)
	}

	if !created {
		s.logger.LogOrder("CREATE", order.ID, fmt.Sprintf("session %s already recorded", session.ID))
		return order, nil
	}

	s.logger.LogOrder("CREATE", order.ID, fmt.Sprintf("session %s, %s %.2f %s, payment %s",
		session.ID, order.PackageName, order.Amount, order.Currency, order.PaymentStatus))
	s.Metrics.OrderTransition(ctx, string(order.Status))
	s.announce(ctx, models.OrderEventCreated, order)
	return order, nil
}

// FulfillOrder generates the buyer's account and marks the order delivered in a
// single transaction. An order that already carries an account is left as is.
func (s *OrderService) FulfillOrder(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	now := s.now()

	account, err := s.Credentials.Generate(now)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Credential generation failed for session %s: %v", session.ID, err))
		return nil, fmt.Errorf("%w: session %s: %w", ErrFulfillment, session.ID, err)
	}

	order, changed, err := s.DB.FulfillOrder(ctx, session.ID, account, now)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Failed to fulfill session %s: %v", session.ID, err))
		return nil, fmt.Errorf("fulfill session %s: %w", session.ID, err)
	}

	if !changed {
		s.logger.LogOrder("FULFILL", order.ID, "already delivered, keeping existing account")
		return order, nil
	}

	s.logger.LogOrder("FULFILL", order.ID, fmt.Sprintf("delivered account %s", account.Email))
	s.Metrics.OrderTransition(ctx, string(order.Status))
	s.announce(ctx, models.OrderEventDelivered, order)
	return order, nil
}

// HandleFailedPayment marks the session's order failed whatever its previous state.
// A session without an order is logged and ignored.
func (s *OrderService) HandleFailedPayment(ctx context.Context, session *stripe.CheckoutSession) error {
	order, err := s.DB.MarkFailed(ctx, session.ID)
	if errors.Is(err, ErrOrderNotFound) {
		s.logger.Warn("ORDER", fmt.Sprintf("Payment failed for session %s with no recorded order", session.ID))
		return nil
	}
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Failed to mark session %s as failed: %v", session.ID, err))
		return fmt.Errorf("mark session %s failed: %w", session.ID, err)
	}

	s.logger.LogOrder("FAIL", order.ID, fmt.Sprintf("payment failed for session %s", session.ID))
	s.Metrics.OrderTransition(ctx, string(order.Status))
	s.announce(ctx, models.OrderEventFailed, order)
	return nil
}

// LogPaymentEvent appends the event to the audit ledger. Failures are logged only.
func (s *OrderService) LogPaymentEvent(ctx context.Context, event *stripe.Event, payload []byte) {
	entry := &models.PaymentLog{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		Payload:       string(payload),
	}
	if len(payload) == 0 {
		raw, _ := json.Marshal(event)
		entry.Payload = string(raw)
	}

	if err := s.Payments.SavePaymentLog(ctx, entry); err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to log payment event %s: %v", event.ID, err))
	}
}

// announce publishes the change to Kafka and live subscribers. Failures are logged only.
func (s *OrderService) announce(ctx context.Context, eventType string, order *models.Order) {
	if s.Events != nil {
		s.Events.Emit(*order)
	}
	if s.Kafka == nil {
		return
	}

	event := models.NewOrderEvent(eventType, order)
	var err error
	switch eventType {
	case models.OrderEventCreated:
		err = s.Kafka.PublishOrderCreated(ctx, event)
	case models.OrderEventDelivered:
		err = s.Kafka.PublishOrderDelivered(ctx, event)
	case models.OrderEventFailed:
		err = s.Kafka.PublishOrderFailed(ctx, event)
	}
	if err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Kafka publish error (%s) for order %s: %v", eventType, order.ID, err))
	}
}

// ---------------- ORDER READS ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, id)
}

// GetOrderForUser returns the order only when userID owns it.
func (s *OrderService) GetOrderForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID == "" || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) QueryGuestOrder(ctx context.Context, req models.OrderQueryRequest) (*models.Order, error) {
	return s.DB.GetOrderForGuest(ctx, req.OrderID, req.Phone)
}

func (s *OrderService) GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	return s.DB.GetOrderBySessionID(ctx, sessionID)
}

func (s *OrderService) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, int, error) {
	return s.DB.ListOrders(ctx, status, limit, offset)
}

// UpdateOrderStatus is the back-office override. It skips credential handling.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, req models.OrderStatusUpdateRequest) (*models.Order, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	order, err := s.DB.UpdateOrderStatus(ctx, id, req.Status, req.PaymentStatus)
	if err != nil {
		return nil, err
	}
	s.logger.LogOrder("OVERRIDE", order.ID, fmt.Sprintf("status set to %s", order.Status))
	s.Metrics.OrderTransition(ctx, string(order.Status))
	if s.Events != nil {
		s.Events.Emit(*order)
	}
	return order, nil
}
