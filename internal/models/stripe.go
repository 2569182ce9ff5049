package models

// CheckoutSessionRequest is posted by the storefront when a package is bought.
type CheckoutSessionRequest struct {
	PackageID          string  `json:"packageId" validate:"required"`
	PackageName        string  `json:"packageName" validate:"required"`
	PackageDescription string  `json:"packageDescription"`
	SalePrice          float64 `json:"salePrice" validate:"gte=0"`
}

// CheckoutSessionResponse carries the hosted checkout URL back to the browser.
type CheckoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// CheckoutSessionInput is what the payment service needs to open a session.
type CheckoutSessionInput struct {
	CustomerID  string
	UserID      string
	PackageID   string
	PackageName string
	Description string
	UnitAmount  int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// WebhookAck is the acknowledgement body returned to the payment provider.
type WebhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}
