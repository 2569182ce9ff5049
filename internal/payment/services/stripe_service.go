package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/order"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrInvalidAmount          = errors.New("invalid payment amount")
)

// CheckoutSessions is the part of the Stripe checkout session client we use.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Customers is the part of the Stripe customer client we use.
type Customers interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

// StripeService opens hosted checkout sessions and manages Stripe customers.
type StripeService struct {
	Sessions  CheckoutSessions
	Customers Customers
	log       *logger.Logger
}

// NewStripeService creates a new instance of StripeService
func NewStripeService(secretKey string, log *logger.Logger) (*StripeService, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		Sessions:  sc.CheckoutSessions,
		Customers: sc.Customers,
		log:       log,
	}, nil
}

func NewStripeServiceWithClients(sessions CheckoutSessions, customers Customers, log *logger.Logger) *StripeService {
	return &StripeService{Sessions: sessions, Customers: customers, log: log}
}

// CreateCustomer registers the storefront user with Stripe and returns the customer id.
func (s *StripeService) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{order.MetadataUserID: userID},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx

	c, err := s.Customers.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create customer for user %s: %v", userID, err))
		return "", fmt.Errorf("%w: create customer: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Created customer %s for user %s", c.ID, userID))
	return c.ID, nil
}

// CreateCheckoutSession opens a one-item payment session. The metadata written
// here is what the webhook reads back when the order is recorded.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, in models.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	if in.UnitAmount <= 0 {
		s.log.Error("STRIPE", fmt.Sprintf("Invalid amount for package %s: %d", in.PackageID, in.UnitAmount))
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, in.UnitAmount)
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(in.PackageName),
	}
	if in.Description != "" {
		product.Description = stripe.String(in.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(in.Currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(in.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		Metadata: map[string]string{
			order.MetadataUserID:      in.UserID,
			order.MetadataPackageID:   in.PackageID,
			order.MetadataPackageName: in.PackageName,
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}
	params.Context = ctx

	session, err := s.Sessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for package %s: %v", in.PackageID, err))
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Checkout session %s created for user %s, package %s (%d %s)",
		session.ID, in.UserID, in.PackageID, in.UnitAmount, in.Currency))
	return session, nil
}
