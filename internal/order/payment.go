package order

import (
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/utils"
	"github.com/stripe/stripe-go/v82"
)

// Checkout session metadata keys written at session creation.
const (
	MetadataUserID      = "user_id"
	MetadataPackageID   = "package_id"
	MetadataPackageName = "package_name"
)

// orderFromSession maps a completed checkout session onto a new pending order.
func orderFromSession(session *stripe.CheckoutSession) *models.Order {
	order := &models.Order{
		StripeSessionID: session.ID,
		Amount:          utils.MinorToMajor(session.AmountTotal),
		Currency:        string(session.Currency),
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		order.PaymentStatus = models.PaymentStatusPaid
	}

	if session.Metadata != nil {
		order.UserID = session.Metadata[MetadataUserID]
		order.PackageID = session.Metadata[MetadataPackageID]
		order.PackageName = session.Metadata[MetadataPackageName]
	}

	if session.CustomerDetails != nil {
		order.Email = session.CustomerDetails.Email
		order.Phone = session.CustomerDetails.Phone
	}
	if order.Email == "" {
		order.Email = session.CustomerEmail
	}
	if session.Customer != nil {
		order.StripeCustomerID = session.Customer.ID
	}

	return order
}
