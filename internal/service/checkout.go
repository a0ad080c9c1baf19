package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/hlin/internal/billing"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultCurrency is used when no checkout currency is configured.
const DefaultCurrency = "inr"

// Order sources for metrics and logs.
const (
	sourceReconcile = "reconcile"
	sourceWebhook   = "webhook"
	sourceEndpoint  = "endpoint"
)

// lineSnapshot wraps client-supplied lines so they validate as one request.
type lineSnapshot struct {
	Lines []domain.CartLine `json:"lines" validate:"dive"`
}

// CheckoutService implements domain.CheckoutService.
//
// Exactly one order exists per payment authorization. That guarantee comes
// from the order store's unique constraint on the authorization id; the
// service treats a duplicate insert as the already-completed outcome.
type CheckoutService struct {
	billing   billing.Provider
	carts     domain.CartStore
	drafts    domain.DraftStore
	orders    domain.OrderStore
	publisher domain.EventPublisher
	currency  string
	logger    *slog.Logger

	now func() time.Time
}

var _ domain.CheckoutService = (*CheckoutService)(nil)

// NewCheckoutService creates a checkout orchestrator. An empty currency
// falls back to DefaultCurrency; a nil publisher disables order events.
func NewCheckoutService(
	provider billing.Provider,
	carts domain.CartStore,
	drafts domain.DraftStore,
	orders domain.OrderStore,
	publisher domain.EventPublisher,
	currency string,
	logger *slog.Logger,
) *CheckoutService {
	if currency == "" {
		currency = DefaultCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		billing:   provider,
		carts:     carts,
		drafts:    drafts,
		orders:    orders,
		publisher: publisher,
		currency:  strings.ToLower(currency),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// toMinor converts a major-unit amount to minor units, rounding half away
// from zero (₹499.995 becomes 50000 paise).
func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// BeginAuthorization requests a payment authorization for amount from the
// gateway. Every call creates a new authorization; the idempotency key only
// covers the client's own retries of this one request. Gateway failures are
// returned as EGATEWAY and never retried.
func (s *CheckoutService) BeginAuthorization(ctx context.Context, sessionID string, amount decimal.Decimal, identity *domain.Identity) (*domain.AuthorizationResult, error) {
	const op = "checkout.begin_authorization"

	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	minor := toMinor(amount)
	if minor <= 0 {
		return nil, domain.NewValidationError(op, "total", "must be greater than 0")
	}
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}

	ctx, span := telemetry.StartSpan(ctx, op,
		attribute.Int64("amount_minor", minor),
		attribute.String("currency", s.currency),
	)
	defer span.End()

	if m := telemetry.Business; m != nil {
		m.CheckoutStarted.WithLabelValues(s.currency).Inc()
		m.PaymentAttempts.WithLabelValues(s.currency).Inc()
	}

	pi, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountMinor:  minor,
		Currency:     s.currency,
		Description:  "hlin order",
		ReceiptEmail: identity.Email,
		Metadata: map[string]string{
			domain.MetadataUserID:    identity.ID,
			domain.MetadataSessionID: sessionID,
		},
		IdempotencyKey:          fmt.Sprintf("%s:%s", sessionID, uuid.NewString()),
		AutomaticPaymentMethods: true,
	})
	if err != nil {
		telemetry.RecordSpanError(span, err)
		s.logger.ErrorContext(ctx, "payment authorization failed",
			"op", op,
			"user_id", identity.ID,
			"amount_minor", minor,
			"error", err,
		)
		return nil, domain.Gateway(err, op, billing.UserMessage(err))
	}

	span.SetAttributes(attribute.String("authorization_id", pi.ID))
	telemetry.SetSpanSuccess(span)

	s.logger.InfoContext(ctx, "payment authorization created",
		"authorization_id", pi.ID,
		"user_id", identity.ID,
		"amount_minor", minor,
		"currency", s.currency,
	)

	return &domain.AuthorizationResult{
		ClientHandle:    pi.ClientSecret,
		AuthorizationID: pi.ID,
		AmountMinor:     minor,
		Currency:        s.currency,
		State:           domain.StateAwaitingExternalConfirmation,
	}, nil
}

// StageOrderDraft validates the address and stores the draft for the
// session, overwriting any earlier draft.
func (s *CheckoutService) StageOrderDraft(ctx context.Context, sessionID string, lines []domain.CartLine, address domain.ShippingAddress) (*domain.OrderDraft, error) {
	const op = "checkout.stage_draft"

	if err := validate.Struct(address); err != nil {
		return nil, validationError(op, err)
	}
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}

	if len(lines) == 0 {
		cart, err := s.carts.GetCart(ctx, sessionID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load cart")
		}
		if !cart.IsEmpty() {
			lines = cart.Lines
		}
	} else if err := validate.Struct(lineSnapshot{Lines: lines}); err != nil {
		return nil, validationError(op, err)
	}
	if len(lines) == 0 {
		return nil, domain.NewValidationError(op, "cart", "cart is empty")
	}

	draft := &domain.OrderDraft{
		Lines:    lines,
		Total:    domain.LinesTotal(lines),
		Address:  address,
		StagedAt: s.now(),
	}
	if err := s.drafts.SaveDraft(ctx, sessionID, draft); err != nil {
		return nil, domain.Internal(err, op, "failed to save checkout details")
	}

	if m := telemetry.Business; m != nil {
		m.DraftsStaged.Inc()
	}

	return draft, nil
}

// Reconcile asks the gateway for the authoritative status of an
// authorization and, on success, records the order. Repeated calls for the
// same authorization return the same order.
func (s *CheckoutService) Reconcile(ctx context.Context, sessionID, authorizationID string, identity *domain.Identity) (*domain.ReconcileResult, error) {
	const op = "checkout.reconcile"

	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	authorizationID = strings.TrimSpace(authorizationID)
	if authorizationID == "" {
		return nil, domain.NewValidationError(op, "authorizationId", "is required")
	}

	ctx, span := telemetry.StartSpan(ctx, op, attribute.String("authorization_id", authorizationID))
	defer span.End()

	pi, err := s.billing.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{PaymentIntentID: authorizationID})
	if err != nil {
		telemetry.RecordSpanError(span, err)
		s.logger.WarnContext(ctx, "could not retrieve payment authorization",
			"op", op,
			"authorization_id", authorizationID,
			"error", err,
		)
		s.recordOutcome("failed")
		return nil, domain.WrapError(err, domain.EPAYMENT, op, domain.ErrPaymentFailed.Message)
	}
	auth := pi.Authorization()

	if owner := auth.Metadata[domain.MetadataUserID]; owner != "" && owner != identity.ID {
		return nil, domain.Forbidden(op, "This payment belongs to another account.")
	}
	if sessionID == "" {
		sessionID = auth.Metadata[domain.MetadataSessionID]
	}

	state := domain.StateForStatus(auth.Status)
	span.SetAttributes(attribute.String("state", string(state)))

	switch auth.Status {
	case domain.AuthorizationSucceeded:
		order, err := s.completeOrder(ctx, op, sessionID, identity.ID, auth, sourceReconcile)
		if err != nil {
			telemetry.RecordSpanError(span, err)
			if domain.IsCode(err, domain.EGONE) {
				s.recordOutcome("draft_missing")
			}
			return nil, err
		}
		telemetry.SetSpanSuccess(span)
		s.recordOutcome(string(domain.OutcomeSucceeded))
		return &domain.ReconcileResult{
			Outcome: domain.OutcomeSucceeded,
			OrderID: order.ID,
			State:   state,
			Message: "Payment received. Your order has been placed.",
		}, nil

	case domain.AuthorizationProcessing:
		s.recordOutcome(string(domain.OutcomePendingConfirmation))
		return &domain.ReconcileResult{
			Outcome: domain.OutcomePendingConfirmation,
			State:   state,
			Message: "Your payment is processing. We will confirm your order once it completes.",
		}, nil

	default:
		s.recordOutcome("failed")
		if m := telemetry.Business; m != nil {
			m.PaymentFailed.WithLabelValues(string(auth.Status)).Inc()
		}
		msg := domain.ErrPaymentFailed.Message
		if auth.LastError != "" {
			msg = auth.LastError
		}
		s.logger.InfoContext(ctx, "payment not completed",
			"authorization_id", auth.ID,
			"status", auth.Status,
			"last_error", auth.LastError,
		)
		return nil, &domain.Error{Code: domain.EPAYMENT, Op: op, Message: msg}
	}
}

// HandlePaymentSucceeded records the order for an authorization reported
// by webhook. The session and owner come from the authorization metadata.
// A missing draft means the shopper's own reconcile already ran or the
// draft expired; either way there is nothing left to do.
func (s *CheckoutService) HandlePaymentSucceeded(ctx context.Context, auth *domain.PaymentAuthorization) error {
	const op = "checkout.handle_payment_succeeded"

	if auth == nil || auth.ID == "" {
		return domain.Invalid(op, "payment authorization is required")
	}
	if auth.Status != domain.AuthorizationSucceeded {
		s.logger.WarnContext(ctx, "ignoring authorization that has not succeeded",
			"authorization_id", auth.ID,
			"status", auth.Status,
		)
		return nil
	}

	ownerID := auth.Metadata[domain.MetadataUserID]
	sessionID := auth.Metadata[domain.MetadataSessionID]
	if ownerID == "" || sessionID == "" {
		s.logger.WarnContext(ctx, "authorization metadata incomplete, cannot attribute order",
			"authorization_id", auth.ID,
		)
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, op, attribute.String("authorization_id", auth.ID))
	defer span.End()

	if _, err := s.completeOrder(ctx, op, sessionID, ownerID, auth, sourceWebhook); err != nil {
		if domain.IsCode(err, domain.EGONE) {
			s.logger.InfoContext(ctx, "no staged draft for webhook authorization",
				"authorization_id", auth.ID,
				"session_id", sessionID,
			)
			return nil
		}
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

// completeOrder inserts the order for a succeeded authorization, or returns
// the one already recorded for it.
func (s *CheckoutService) completeOrder(ctx context.Context, op, sessionID, ownerID string, auth *domain.PaymentAuthorization, source string) (*domain.Order, error) {
	existing, err := s.findExisting(ctx, op, auth.ID, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.clearStagedBefore(ctx, sessionID, auth.ID, existing.CreatedAt)
		return existing, nil
	}

	draft, err := s.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrDraftMissing) {
			// A concurrent reconcile inserts the order before it deletes the draft.
			if existing, ferr := s.findExisting(ctx, op, auth.ID, ownerID); ferr == nil && existing != nil {
				return existing, nil
			}
			return nil, &domain.Error{Code: domain.EGONE, Op: op, Message: domain.ErrDraftMissing.Message, Err: err}
		}
		return nil, domain.Internal(err, op, "failed to load checkout details")
	}

	if draftMinor := toMinor(draft.Total); auth.AmountMinor != 0 && draftMinor != auth.AmountMinor {
		s.logger.WarnContext(ctx, "authorized amount differs from staged draft",
			"authorization_id", auth.ID,
			"authorized_minor", auth.AmountMinor,
			"draft_minor", draftMinor,
		)
	}

	currency := auth.Currency
	if currency == "" {
		currency = s.currency
	}

	order := &domain.Order{
		ID:                     uuid.NewString(),
		OwnerID:                ownerID,
		Lines:                  draft.Lines,
		TotalAmount:            draft.Total,
		Currency:               currency,
		ShippingAddress:        draft.Address,
		PaymentAuthorizationID: auth.ID,
		Status:                 domain.OrderStatusPaid,
		CreatedAt:              s.now(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if !domain.IsCode(err, domain.EDUPLICATE) {
			return nil, domain.Internal(err, op, "failed to record order")
		}

		// Another reconcile or the webhook won the insert.
		if m := telemetry.Business; m != nil {
			m.DuplicatePayments.WithLabelValues(source).Inc()
		}
		existing, err := s.orders.GetByAuthorizationID(ctx, auth.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load recorded order")
		}
		s.clearStagedBefore(ctx, sessionID, auth.ID, draft.StagedAt)
		return existing, nil
	}

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"authorization_id", auth.ID,
		"owner_id", ownerID,
		"source", source,
	)

	s.clearSession(ctx, sessionID, auth.ID)
	s.publish(ctx, order)
	recordOrderCreated(order, source)

	return order, nil
}

// findExisting returns the order already recorded for authorizationID, or
// nil when there is none.
func (s *CheckoutService) findExisting(ctx context.Context, op, authorizationID, ownerID string) (*domain.Order, error) {
	order, err := s.orders.GetByAuthorizationID(ctx, authorizationID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to look up order")
	}
	if order.OwnerID != ownerID {
		return nil, domain.Forbidden(op, "This payment belongs to another account.")
	}
	return order, nil
}

// clearStagedBefore clears the session only while its draft is the one an
// order was already built from, staged no later than cutoff. A draft staged
// afterwards belongs to a new checkout and is left alone, as is the cart
// when no draft remains.
func (s *CheckoutService) clearStagedBefore(ctx context.Context, sessionID, authorizationID string, cutoff time.Time) {
	if sessionID == "" {
		return
	}
	draft, err := s.drafts.GetDraft(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrDraftMissing) {
			s.logger.WarnContext(ctx, "failed to load draft for cleanup",
				"authorization_id", authorizationID,
				"error", err,
			)
		}
		return
	}
	if draft.StagedAt.After(cutoff) {
		s.logger.InfoContext(ctx, "keeping draft staged after order",
			"authorization_id", authorizationID,
			"staged_at", draft.StagedAt,
		)
		return
	}
	s.clearSession(ctx, sessionID, authorizationID)
}

// clearSession removes the draft and cart once an order exists. Failures
// are logged: the order is already recorded and the state expires anyway.
func (s *CheckoutService) clearSession(ctx context.Context, sessionID, authorizationID string) {
	if sessionID == "" {
		return
	}
	if err := s.drafts.DeleteDraft(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete draft",
			"authorization_id", authorizationID,
			"error", err,
		)
	}
	if err := s.carts.ClearCart(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart",
			"authorization_id", authorizationID,
			"error", err,
		)
		return
	}
	if m := telemetry.Business; m != nil {
		m.CartCleared.WithLabelValues("purchase").Inc()
	}
}

func (s *CheckoutService) publish(ctx context.Context, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderCreated(ctx, domain.NewOrderCreatedEvent(order)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event",
			"order_id", order.ID,
			"error", err,
		)
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
			"order_id": order.ID,
		})
	}
}

func (s *CheckoutService) recordOutcome(outcome string) {
	if m := telemetry.Business; m != nil {
		m.ReconcileOutcomes.WithLabelValues(outcome).Inc()
	}
}

func recordOrderCreated(order *domain.Order, source string) {
	m := telemetry.Business
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(source).Inc()
	m.PaymentSucceeded.WithLabelValues(source).Inc()
	m.OrderValue.WithLabelValues(order.Currency).Observe(float64(toMinor(order.TotalAmount)))

	n := 0
	for _, l := range order.Lines {
		n += l.Quantity
	}
	m.OrderItemCount.Observe(float64(n))
}
