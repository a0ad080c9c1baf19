package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider using the Stripe API.
// Network retries are disabled: a failed create surfaces to the caller.
type StripeProvider struct {
	client *stripe.Client
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})

	return &StripeProvider{
		client: stripe.NewClient(config.APIKey, stripe.WithBackends(backends)),
		config: config,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountMinor <= 0 {
		return nil, ErrAmountTooSmall
	}

	p := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		Metadata: params.Metadata,
	}
	if params.AutomaticPaymentMethods {
		p.AutomaticPaymentMethods = &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	if params.ReceiptEmail != "" {
		p.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, p)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return fromStripePaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a Stripe payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	if params.PaymentIntentID == "" {
		return nil, ErrPaymentIntentNotFound
	}

	p := &stripe.PaymentIntentRetrieveParams{}
	for _, e := range params.Expand {
		p.AddExpand(e)
	}

	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, params.PaymentIntentID, p)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return fromStripePaymentIntent(pi), nil
}

// CancelPaymentIntent cancels a Stripe payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if _, err := s.client.V1PaymentIntents.Cancel(ctx, paymentIntentID, &stripe.PaymentIntentCancelParams{}); err != nil {
		return wrapStripeError(err)
	}
	return nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
// The payload is parsed separately by the caller.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if secret == "" {
		secret = s.config.WebhookSecret
	}
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

// Event is a verified webhook event reduced to what the handlers need.
type Event struct {
	ID   string
	Type string
	Raw  []byte
}

// ParseEvent decodes a webhook payload. Call VerifyWebhookSignature first.
func ParseEvent(payload []byte) (*Event, error) {
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("parse webhook event %s: missing data", ev.ID)
	}
	return &Event{ID: ev.ID, Type: string(ev.Type), Raw: ev.Data.Raw}, nil
}

// PaymentIntent decodes the event object as a payment intent.
func (e *Event) PaymentIntent() (*PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(e.Raw, &pi); err != nil {
		return nil, fmt.Errorf("parse payment intent from event %s: %w", e.ID, err)
	}
	return fromStripePaymentIntent(&pi), nil
}

func fromStripePaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0).UTC(),
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}
	return out
}

// wrapStripeError converts SDK errors into StripeError so callers never
// import the SDK to inspect failures.
func wrapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &StripeError{Message: "payment gateway request failed", OriginalError: err}
	}

	if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%w: %s", ErrPaymentIntentNotFound, se.Msg)
	}
	if se.Code == stripe.ErrorCodeIdempotencyKeyInUse || se.Type == stripe.ErrorTypeIdempotency {
		return fmt.Errorf("%w: %s", ErrIdempotencyConflict, se.Msg)
	}

	return &StripeError{
		Message:       se.Msg,
		Code:          string(se.Code),
		DeclineCode:   string(se.DeclineCode),
		StatusCode:    se.HTTPStatusCode,
		RequestID:     se.RequestID,
		OriginalError: err,
	}
}
