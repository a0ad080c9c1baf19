package billing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// TestMockProvider_CreatePaymentIntent tests payment intent creation with various scenarios
func TestMockProvider_CreatePaymentIntent(t *testing.T) {
	tests := []struct {
		name      string
		params    CreatePaymentIntentParams
		setupMock func(*MockProvider)
		wantErr   error
	}{
		{
			name: "creates payment intent with valid params",
			params: CreatePaymentIntentParams{
				AmountMinor:             50000,
				Currency:                "inr",
				IdempotencyKey:          "sess_1:50000",
				AutomaticPaymentMethods: true,
				Metadata: map[string]string{
					"user_id":    "user_1",
					"session_id": "sess_1",
				},
			},
		},
		{
			name: "surfaces gateway rejection",
			params: CreatePaymentIntentParams{
				AmountMinor: 1,
				Currency:    "inr",
			},
			setupMock: func(m *MockProvider) {
				m.CreatePaymentIntentFunc = func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
					return nil, ErrAmountTooSmall
				}
			},
			wantErr: ErrAmountTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider()
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			pi, err := mock.CreatePaymentIntent(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, pi.ID)
			assert.Contains(t, pi.ClientSecret, "_secret_")
			assert.Equal(t, tt.params.AmountMinor, pi.AmountMinor)
			assert.Equal(t, tt.params.Metadata, pi.Metadata)
			assert.Len(t, mock.Calls(), 1)
		})
	}
}

func TestMockProvider_StatusLifecycle(t *testing.T) {
	mock := NewMockProvider()
	ctx := context.Background()

	pi, err := mock.CreatePaymentIntent(ctx, CreatePaymentIntentParams{AmountMinor: 1000, Currency: "inr"})
	require.NoError(t, err)

	require.NoError(t, mock.SimulateProcessingPayment(pi.ID))
	got, err := mock.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: pi.ID})
	require.NoError(t, err)
	assert.Equal(t, "processing", got.Status)

	require.NoError(t, mock.SimulateFailedPayment(pi.ID, "card_declined", "Your card was declined."))
	got, err = mock.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: pi.ID})
	require.NoError(t, err)
	assert.Equal(t, "requires_payment_method", got.Status)
	require.NotNil(t, got.LastPaymentError)
	assert.Equal(t, "Your card was declined.", got.LastPaymentError.Message)

	require.NoError(t, mock.SimulateSucceededPayment(pi.ID))
	got, err = mock.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: pi.ID})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", got.Status)
	assert.Nil(t, got.LastPaymentError)

	require.NoError(t, mock.CancelPaymentIntent(ctx, pi.ID))
	_, err = mock.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: "pi_missing"})
	assert.ErrorIs(t, err, ErrPaymentIntentNotFound)
}

func TestStripeProvider_VerifyWebhookSignature(t *testing.T) {
	const secret = "whsec_test_secret"
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: secret})
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded"}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	t.Run("accepts valid signature", func(t *testing.T) {
		assert.NoError(t, provider.VerifyWebhookSignature(payload, signed.Header, secret))
	})

	t.Run("falls back to configured secret", func(t *testing.T) {
		assert.NoError(t, provider.VerifyWebhookSignature(payload, signed.Header, ""))
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		err := provider.VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), signed.Header, secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		err := provider.VerifyWebhookSignature(payload, signed.Header, "whsec_other")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		old := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now().Add(-time.Hour),
		})
		err := provider.VerifyWebhookSignature(payload, old.Header, secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})
}

func TestStripeProvider_RejectsNonPositiveAmount(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_test"})
	require.NoError(t, err)

	_, err = provider.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{AmountMinor: 0, Currency: "inr"})
	assert.ErrorIs(t, err, ErrAmountTooSmall)
}

func TestWrapStripeError(t *testing.T) {
	t.Run("maps declines", func(t *testing.T) {
		err := wrapStripeError(&stripe.Error{
			Code:           stripe.ErrorCodeCardDeclined,
			Msg:            "Your card was declined.",
			DeclineCode:    "insufficient_funds",
			HTTPStatusCode: http.StatusPaymentRequired,
			RequestID:      "req_123",
		})

		var se *StripeError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "card_declined", se.Code)
		assert.Equal(t, "insufficient_funds", se.DeclineCode)
		assert.Equal(t, "req_123", se.RequestID)
		assert.True(t, se.IsDeclined())
		assert.True(t, se.IsClientError())
		assert.Equal(t, "Your card was declined.", UserMessage(err))
	})

	t.Run("maps missing resources", func(t *testing.T) {
		err := wrapStripeError(&stripe.Error{
			Code:           stripe.ErrorCodeResourceMissing,
			Msg:            "No such payment_intent",
			HTTPStatusCode: http.StatusNotFound,
		})
		assert.ErrorIs(t, err, ErrPaymentIntentNotFound)
	})

	t.Run("wraps transport errors", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := wrapStripeError(cause)

		var se *StripeError
		require.True(t, errors.As(err, &se))
		assert.ErrorIs(t, err, cause)
		assert.False(t, se.IsClientError())
	})

	t.Run("server errors are not client errors", func(t *testing.T) {
		se := &StripeError{StatusCode: http.StatusInternalServerError}
		assert.False(t, se.IsClientError())
		assert.False(t, (&StripeError{StatusCode: http.StatusTooManyRequests}).IsClientError())
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Payment service is temporarily unavailable. Please try again shortly.", UserMessage(ErrGatewayUnavailable))
	assert.Equal(t, "Payment service error. Please try again.", UserMessage(errors.New("boom")))
}

func TestPaymentIntent_Authorization(t *testing.T) {
	tests := []struct {
		status string
		want   domain.AuthorizationStatus
	}{
		{"succeeded", domain.AuthorizationSucceeded},
		{"processing", domain.AuthorizationProcessing},
		{"requires_action", domain.AuthorizationRequiresAction},
		{"requires_payment_method", domain.AuthorizationRequiresAction},
		{"canceled", domain.AuthorizationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			pi := &PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", AmountMinor: 50000, Currency: "inr", Status: tt.status}
			auth := pi.Authorization()
			assert.Equal(t, tt.want, auth.Status)
			assert.Equal(t, "pi_1_secret", auth.ClientHandle)
			assert.Empty(t, auth.LastError)
		})
	}

	t.Run("carries last error", func(t *testing.T) {
		pi := &PaymentIntent{ID: "pi_2", Status: "requires_payment_method", LastPaymentError: &PaymentError{Code: "card_declined", Message: "Your card was declined."}}
		assert.Equal(t, "Your card was declined.", pi.Authorization().LastError)
	})
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"object": "payment_intent",
			"amount": 50000,
			"currency": "inr",
			"status": "succeeded",
			"metadata": {"user_id": "user-1", "session_id": "sess-1"}
		}}
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment_intent.succeeded", ev.Type)

	pi, err := ev.PaymentIntent()
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, int64(50000), pi.AmountMinor)
	assert.Equal(t, "user-1", pi.Metadata["user_id"])
	assert.Equal(t, domain.AuthorizationSucceeded, pi.Authorization().Status)

	_, err = ParseEvent([]byte(`{`))
	assert.Error(t, err)
}

func TestStripeConfig_Validation(t *testing.T) {
	t.Run("validates required API key", func(t *testing.T) {
		config := StripeConfig{APIKey: "", WebhookSecret: "whsec_test"}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("rejects malformed API key", func(t *testing.T) {
		config := StripeConfig{APIKey: "pk_test_123", WebhookSecret: "whsec_test"}
		assert.ErrorIs(t, config.Validate(), ErrInvalidAPIKey)
	})

	t.Run("validates required webhook secret", func(t *testing.T) {
		config := StripeConfig{APIKey: "sk_test_123", WebhookSecret: ""}
		err := config.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "webhook secret is required")
	})

	t.Run("accepts valid configuration", func(t *testing.T) {
		config := StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_test"}
		assert.NoError(t, config.Validate())
	})

	t.Run("detects test mode correctly", func(t *testing.T) {
		assert.True(t, (&StripeConfig{APIKey: "sk_test_123456"}).IsTestMode())
		assert.False(t, (&StripeConfig{APIKey: "sk_live_123456"}).IsTestMode())
	})
}
