package storefront

import (
	"net/http"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
	"github.com/dukerupert/hlin/internal/middleware"
	"github.com/shopspring/decimal"
)

// CheckoutHandler serves the payment authorization, draft staging and
// reconciliation endpoints.
type CheckoutHandler struct {
	checkout domain.CheckoutService
}

func NewCheckoutHandler(checkout domain.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type beginAuthorizationRequest struct {
	Total decimal.Decimal `json:"total"`
}

// BeginAuthorization handles POST /api/payment-authorizations
func (h *CheckoutHandler) BeginAuthorization(w http.ResponseWriter, r *http.Request) {
	var req beginAuthorizationRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()
	result, err := h.checkout.BeginAuthorization(ctx, domain.SessionIDFromContext(ctx), req.Total, domain.IdentityFromContext(ctx))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, result)
}

type stageDraftRequest struct {
	Address domain.ShippingAddress `json:"address"`
	Lines   []domain.CartLine      `json:"lines,omitempty"`
}

type stageDraftResponse struct {
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	StagedAt  string          `json:"stagedAt"`
}

// StageDraft handles POST /api/checkout/draft
func (h *CheckoutHandler) StageDraft(w http.ResponseWriter, r *http.Request) {
	var req stageDraftRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()
	draft, err := h.checkout.StageOrderDraft(ctx, domain.SessionIDFromContext(ctx), req.Lines, req.Address)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, stageDraftResponse{
		Total:     draft.Total,
		ItemCount: draft.ItemCount(),
		StagedAt:  draft.StagedAt.UTC().Format(time.RFC3339),
	})
}

type reconcileRequest struct {
	AuthorizationID string `json:"authorizationId"`
}

// Reconcile handles POST /api/checkout/reconcile
func (h *CheckoutHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.reconcile(w, r, req.AuthorizationID)
}

// Return handles GET /api/checkout/return, the processor's redirect target
// after an off-site confirmation step.
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, r.URL.Query().Get("payment_intent"))
}

func (h *CheckoutHandler) reconcile(w http.ResponseWriter, r *http.Request, authorizationID string) {
	ctx := r.Context()

	result, err := h.checkout.Reconcile(ctx, domain.SessionIDFromContext(ctx), authorizationID, domain.IdentityFromContext(ctx))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == domain.OutcomePendingConfirmation {
		status = http.StatusAccepted
	}

	middleware.GetLogger(ctx).Info("checkout reconciled",
		"authorization_id", authorizationID,
		"outcome", result.Outcome,
		"order_id", result.OrderID,
	)

	handler.WriteJSON(w, status, result)
}
