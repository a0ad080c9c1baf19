package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/hlin/internal/billing"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
	"github.com/dukerupert/hlin/internal/middleware"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// Event types the handler acts on. Everything else is acknowledged and
// counted.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider      billing.Provider
	checkout      domain.CheckoutService
	webhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func NewStripeHandler(provider billing.Provider, checkout domain.CheckoutService, webhookSecret string) *StripeHandler {
	return &StripeHandler{
		provider:      provider,
		checkout:      checkout,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook verifies and dispatches one event.
//
// A processing failure answers 500 so Stripe redelivers the event.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.verify", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.webhookSecret); err != nil {
		logger.Warn("webhook signature rejected", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.verify", "Invalid signature"))
		return
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.parse", "Invalid event payload"))
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
		}()
	}

	switch event.Type {
	case EventPaymentSucceeded:
		err = h.handlePaymentSucceeded(r, event)
	case EventPaymentFailed:
		err = h.handlePaymentFailed(r, event)
	case EventPaymentCanceled:
		logger.Info("payment intent canceled")
	default:
		logger.Debug("unhandled webhook event")
	}

	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(event.Type, domain.ErrorCode(err)).Inc()
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(event.Type).Inc()
	}
	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) handlePaymentSucceeded(r *http.Request, event *billing.Event) error {
	pi, err := event.PaymentIntent()
	if err != nil {
		return domain.WrapError(err, domain.EINVALID, "webhook.payment_succeeded", "Invalid payment intent")
	}

	middleware.GetLogger(r.Context()).Info("payment succeeded",
		"authorization_id", pi.ID,
		"amount_minor", pi.AmountMinor,
		"currency", pi.Currency,
	)

	return h.checkout.HandlePaymentSucceeded(r.Context(), pi.Authorization())
}

func (h *StripeHandler) handlePaymentFailed(r *http.Request, event *billing.Event) error {
	pi, err := event.PaymentIntent()
	if err != nil {
		return domain.WrapError(err, domain.EINVALID, "webhook.payment_failed", "Invalid payment intent")
	}

	reason := "unknown"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Code != "" {
		reason = pi.LastPaymentError.Code
	}

	middleware.GetLogger(r.Context()).Info("payment failed",
		"authorization_id", pi.ID,
		"reason", reason,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(reason).Inc()
	}
	return nil
}
