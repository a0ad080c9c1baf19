package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CHECKOUT DOMAIN ERRORS
// =============================================================================

var (
	ErrUnauthenticated = &Error{Code: EUNAUTHORIZED, Message: "Please sign in to continue."}
	ErrDraftMissing    = &Error{Code: EGONE, Message: "Your checkout details are no longer available. Please review your cart and try again."}
	ErrPaymentFailed   = &Error{Code: EPAYMENT, Message: "Payment failed. Please try another payment method."}
)

// ShippingAddress is where an order ships to.
// Every field is required; the draft cannot be staged with a partial address.
type ShippingAddress struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Street      string `json:"street" validate:"required"`
	City        string `json:"city" validate:"required"`
	PostalCode  string `json:"postalCode" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required,iso3166_1_alpha2"`
}

// OrderDraft is the staged snapshot of cart lines and address that
// reconciliation turns into an order once payment succeeds.
type OrderDraft struct {
	Lines    []CartLine      `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	Address  ShippingAddress `json:"address"`
	StagedAt time.Time       `json:"stagedAt"`
}

// ItemCount returns the number of units in the draft.
func (d *OrderDraft) ItemCount() int {
	n := 0
	for _, l := range d.Lines {
		n += l.Quantity
	}
	return n
}

// DraftStore holds at most one draft per session. Saving overwrites.
// GetDraft returns ErrDraftMissing when nothing is staged.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID string, draft *OrderDraft) error
	GetDraft(ctx context.Context, sessionID string) (*OrderDraft, error)
	DeleteDraft(ctx context.Context, sessionID string) error
}

// =============================================================================
// PAYMENT AUTHORIZATION
// =============================================================================

// AuthorizationStatus is the normalized processor status of an authorization.
type AuthorizationStatus string

const (
	AuthorizationRequiresAction AuthorizationStatus = "requires_action"
	AuthorizationProcessing     AuthorizationStatus = "processing"
	AuthorizationSucceeded      AuthorizationStatus = "succeeded"
	AuthorizationFailed         AuthorizationStatus = "failed"
)

// NormalizeAuthorizationStatus maps a raw processor status onto the four
// statuses checkout reasons about. Unknown values are treated as failed.
func NormalizeAuthorizationStatus(raw string) AuthorizationStatus {
	switch raw {
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return AuthorizationRequiresAction
	case "processing":
		return AuthorizationProcessing
	case "succeeded":
		return AuthorizationSucceeded
	default:
		return AuthorizationFailed
	}
}

// Metadata keys written on every authorization.
const (
	MetadataUserID    = "user_id"
	MetadataSessionID = "session_id"
)

// PaymentAuthorization is the processor-side record of a payment attempt.
type PaymentAuthorization struct {
	ID           string
	ClientHandle string
	AmountMinor  int64
	Currency     string
	Status       AuthorizationStatus
	Metadata     map[string]string

	// LastError is the processor's last payment error message, if any.
	LastError string
}

// =============================================================================
// ATTEMPT STATE
// =============================================================================

// AttemptState tracks one checkout attempt from the server's point of view.
type AttemptState string

const (
	StateIdle                         AttemptState = "idle"
	StateAuthorizationRequested       AttemptState = "authorization_requested"
	StateAwaitingExternalConfirmation AttemptState = "awaiting_external_confirmation"
	StateSucceeded                    AttemptState = "succeeded"
	StateProcessing                   AttemptState = "processing"
	StateFailed                       AttemptState = "failed"
)

var attemptTransitions = map[AttemptState][]AttemptState{
	StateIdle:                         {StateAuthorizationRequested},
	StateAuthorizationRequested:       {StateAwaitingExternalConfirmation, StateFailed},
	StateAwaitingExternalConfirmation: {StateSucceeded, StateProcessing, StateFailed},
	StateProcessing:                   {StateSucceeded, StateFailed},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AttemptState) CanTransitionTo(next AttemptState) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AttemptState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// StateForStatus returns the attempt state a reconciled authorization lands in.
func StateForStatus(status AuthorizationStatus) AttemptState {
	switch status {
	case AuthorizationSucceeded:
		return StateSucceeded
	case AuthorizationProcessing:
		return StateProcessing
	default:
		return StateFailed
	}
}

// =============================================================================
// CHECKOUT SERVICE
// =============================================================================

// AuthorizationResult is returned to the client after a payment
// authorization was created. ClientHandle is what the client hands to the
// processor's payment form.
type AuthorizationResult struct {
	ClientHandle    string       `json:"clientHandle"`
	AuthorizationID string       `json:"authorizationId"`
	AmountMinor     int64        `json:"amountMinor"`
	Currency        string       `json:"currency"`
	State           AttemptState `json:"state"`
}

// ReconcileOutcome is the non-error result of reconciliation.
type ReconcileOutcome string

const (
	OutcomeSucceeded           ReconcileOutcome = "succeeded"
	OutcomePendingConfirmation ReconcileOutcome = "pending_confirmation"
)

// ReconcileResult describes what reconciliation did.
type ReconcileResult struct {
	Outcome ReconcileOutcome `json:"outcome"`
	OrderID string           `json:"orderId,omitempty"`
	State   AttemptState     `json:"state"`
	Message string           `json:"message"`
}

// CheckoutService orchestrates payment authorization, draft staging and
// reconciliation of the processor outcome into exactly one order.
type CheckoutService interface {
	// BeginAuthorization requests a payment authorization for amount.
	BeginAuthorization(ctx context.Context, sessionID string, amount decimal.Decimal, identity *Identity) (*AuthorizationResult, error)

	// StageOrderDraft validates the address and stores the draft for the session.
	// An empty snapshot falls back to the session's server cart.
	StageOrderDraft(ctx context.Context, sessionID string, lines []CartLine, address ShippingAddress) (*OrderDraft, error)

	// Reconcile turns the processor outcome into an order. Safe to repeat.
	Reconcile(ctx context.Context, sessionID, authorizationID string, identity *Identity) (*ReconcileResult, error)

	// HandlePaymentSucceeded reconciles an authorization reported by webhook.
	HandlePaymentSucceeded(ctx context.Context, authorization *PaymentAuthorization) error
}
