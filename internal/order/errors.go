package order

import (
	"errors"

	"github.com/notdp/franxx-store-sub000/internal/models"
)

var (
	ErrOrderNotFound = models.ErrOrderNotFound
	// ErrFulfillment marks a retryable failure while preparing the delivery payload.
	ErrFulfillment = errors.New("order fulfillment failed")
	// ErrSessionLocked means another delivery for the same checkout session is in flight.
	ErrSessionLocked = errors.New("checkout session is being processed")
	ErrInvalidStatus = errors.New("invalid order status")
)

// Webhook error categories.
const (
	CategoryValidation = "validation"
	CategoryConflict   = "conflict"
	CategoryProcessing = "processing"
)

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // one of the Category* constants
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}
