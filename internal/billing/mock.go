package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing and local development.
// Simulates payment flows without calling Stripe API.
type MockProvider struct {
	// CreatePaymentIntentFunc allows customizing payment intent creation behavior
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntentFunc allows customizing payment intent retrieval behavior
	GetPaymentIntentFunc func(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	mu sync.Mutex

	// PaymentIntents stores created payment intents for retrieval
	PaymentIntents map[string]*PaymentIntent

	// byIdempotencyKey maps a create request's key to the intent it produced
	byIdempotencyKey map[string]string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents:   make(map[string]*PaymentIntent),
		byIdempotencyKey: make(map[string]string),
		CallLog:          []string{},
	}
}

func (m *MockProvider) record(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// CreatePaymentIntent creates a mock payment intent.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.AmountMinor, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Like Stripe, a repeated idempotency key returns the original intent.
	if params.IdempotencyKey != "" {
		if id, ok := m.byIdempotencyKey[params.IdempotencyKey]; ok {
			cp := *m.PaymentIntents[id]
			return &cp, nil
		}
	}

	// Default mock behavior: create a payment intent awaiting confirmation
	id := "pi_" + uuid.New().String()
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String(),
		AmountMinor:  params.AmountMinor,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.PaymentIntents[pi.ID] = pi
	if params.IdempotencyKey != "" {
		m.byIdempotencyKey[params.IdempotencyKey] = pi.ID
	}
	cp := *pi
	return &cp, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("GetPaymentIntent(%s)", params.PaymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.PaymentIntents[params.PaymentIntentID]
	if !exists {
		return nil, ErrPaymentIntentNotFound
	}

	cp := *pi
	return &cp, nil
}

// CancelPaymentIntent cancels a mock payment intent.
func (m *MockProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	m.record(fmt.Sprintf("CancelPaymentIntent(%s)", paymentIntentID))

	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.PaymentIntents[paymentIntentID]
	if !exists {
		return ErrPaymentIntentNotFound
	}

	pi.Status = "canceled"
	return nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.record("VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}

	// Default mock behavior: always verify successfully
	return nil
}

// SimulateSucceededPayment updates a payment intent to succeeded status.
func (m *MockProvider) SimulateSucceededPayment(paymentIntentID string) error {
	return m.setStatus(paymentIntentID, "succeeded", nil)
}

// SimulateProcessingPayment updates a payment intent to processing status.
func (m *MockProvider) SimulateProcessingPayment(paymentIntentID string) error {
	return m.setStatus(paymentIntentID, "processing", nil)
}

// SimulateFailedPayment returns a payment intent to requires_payment_method
// with the given last payment error.
func (m *MockProvider) SimulateFailedPayment(paymentIntentID string, errorCode string, errorMessage string) error {
	return m.setStatus(paymentIntentID, "requires_payment_method", &PaymentError{
		Code:    errorCode,
		Message: errorMessage,
	})
}

func (m *MockProvider) setStatus(paymentIntentID, status string, lastErr *PaymentError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, exists := m.PaymentIntents[paymentIntentID]
	if !exists {
		return ErrPaymentIntentNotFound
	}

	pi.Status = status
	pi.LastPaymentError = lastErr
	return nil
}
