package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around a Provider.
type BreakerConfig struct {
	// MaxFailures consecutive gateway failures open the circuit. Default 5.
	MaxFailures uint32

	// OpenTimeout is how long the circuit stays open before a trial call. Default 30s.
	OpenTimeout time.Duration

	// OnStateChange is called on every transition, for metrics.
	OnStateChange func(from, to string)
}

// BreakerProvider decorates a Provider with a circuit breaker so an outage
// at the processor fails fast instead of tying up checkout requests.
// Calls are never retried. Client errors (4xx from the processor, declines)
// do not count as failures.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker[*PaymentIntent]
	logger  *slog.Logger
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps next.
func NewBreakerProvider(next Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: isGatewayHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment gateway circuit changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from.String(), to.String())
			}
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*PaymentIntent](settings),
		logger:  logger,
	}
}

// State returns the current breaker state name.
func (b *BreakerProvider) State() string {
	return b.breaker.State().String()
}

func (b *BreakerProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	pi, err := b.breaker.Execute(func() (*PaymentIntent, error) {
		return b.next.CreatePaymentIntent(ctx, params)
	})
	return pi, translateBreakerError(err)
}

func (b *BreakerProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	pi, err := b.breaker.Execute(func() (*PaymentIntent, error) {
		return b.next.GetPaymentIntent(ctx, params)
	})
	return pi, translateBreakerError(err)
}

func (b *BreakerProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	_, err := b.breaker.Execute(func() (*PaymentIntent, error) {
		return nil, b.next.CancelPaymentIntent(ctx, paymentIntentID)
	})
	return translateBreakerError(err)
}

// VerifyWebhookSignature is local computation and bypasses the breaker.
func (b *BreakerProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	return b.next.VerifyWebhookSignature(payload, signature, secret)
}

func translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrGatewayUnavailable
	}
	return err
}

// isGatewayHealthy reports whether err says nothing about gateway health.
func isGatewayHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrPaymentIntentNotFound) || errors.Is(err, ErrIdempotencyConflict) || errors.Is(err, ErrAmountTooSmall) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var se *StripeError
	if errors.As(err, &se) {
		return se.IsClientError() || se.IsDeclined()
	}
	return false
}
