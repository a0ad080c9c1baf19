// Package billing adapts the external payment processor behind Provider.
package billing

import (
	"context"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
)

// Provider defines the interface for payment processing.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the payment intent with the client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	// Used as the authoritative status source during reconciliation.
	GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// CancelPaymentIntent cancels a payment intent that hasn't been confirmed.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountMinor is the amount in the smallest currency unit (paise for INR)
	AmountMinor int64

	// Currency code (ISO 4217, lowercase) - e.g., "inr", "usd"
	Currency string

	// Description appears in the processor dashboard
	Description string

	// ReceiptEmail is where the processor sends its receipt
	ReceiptEmail string

	// Metadata is echoed back on retrieval and on webhooks (user_id, session_id)
	Metadata map[string]string

	// IdempotencyKey makes a repeated create return the original intent
	IdempotencyKey string

	// AutomaticPaymentMethods lets the processor pick eligible payment methods
	AutomaticPaymentMethods bool
}

// PaymentIntent represents a payment intent.
type PaymentIntent struct {
	// ID is the processor payment intent ID (pi_...)
	ID string

	// ClientSecret is used by the frontend to confirm payment
	ClientSecret string

	// AmountMinor is the amount in the smallest currency unit
	AmountMinor int64

	// Currency code
	Currency string

	// Status: requires_payment_method, requires_confirmation, processing, succeeded, canceled...
	Status string

	// Metadata passed during creation
	Metadata map[string]string

	// CreatedAt is when the payment intent was created
	CreatedAt time.Time

	// LastPaymentError contains details if the last attempt failed
	LastPaymentError *PaymentError
}

// PaymentError contains details about a failed payment attempt.
type PaymentError struct {
	Code        string // Processor error code
	Message     string // Human-readable message
	DeclineCode string // Reason card was declined (if applicable)
}

// GetPaymentIntentParams contains parameters for retrieving a payment intent.
type GetPaymentIntentParams struct {
	// PaymentIntentID is the processor payment intent ID
	PaymentIntentID string

	// Expand specifies related objects to include in response
	Expand []string
}

// Authorization converts the intent into the processor-neutral form the
// checkout flow reasons about.
func (pi *PaymentIntent) Authorization() *domain.PaymentAuthorization {
	auth := &domain.PaymentAuthorization{
		ID:           pi.ID,
		ClientHandle: pi.ClientSecret,
		AmountMinor:  pi.AmountMinor,
		Currency:     pi.Currency,
		Status:       domain.NormalizeAuthorizationStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		auth.LastError = pi.LastPaymentError.Message
	}
	return auth
}
