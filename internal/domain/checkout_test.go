package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAuthorizationStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want AuthorizationStatus
	}{
		{"requires_payment_method", AuthorizationRequiresAction},
		{"requires_confirmation", AuthorizationRequiresAction},
		{"requires_action", AuthorizationRequiresAction},
		{"requires_capture", AuthorizationRequiresAction},
		{"processing", AuthorizationProcessing},
		{"succeeded", AuthorizationSucceeded},
		{"canceled", AuthorizationFailed},
		{"", AuthorizationFailed},
		{"something_new", AuthorizationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAuthorizationStatus(tt.raw))
		})
	}
}

func TestAttemptState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to AttemptState
		want     bool
	}{
		{StateIdle, StateAuthorizationRequested, true},
		{StateIdle, StateSucceeded, false},
		{StateAuthorizationRequested, StateAwaitingExternalConfirmation, true},
		{StateAuthorizationRequested, StateFailed, true},
		{StateAwaitingExternalConfirmation, StateSucceeded, true},
		{StateAwaitingExternalConfirmation, StateProcessing, true},
		{StateAwaitingExternalConfirmation, StateFailed, true},
		{StateProcessing, StateSucceeded, true},
		{StateProcessing, StateFailed, true},
		{StateProcessing, StateIdle, false},
		{StateSucceeded, StateFailed, false},
		{StateFailed, StateSucceeded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAttemptState_IsTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateProcessing.IsTerminal())
	assert.False(t, StateAwaitingExternalConfirmation.IsTerminal())
	assert.False(t, StateIdle.IsTerminal())
}

func TestStateForStatus(t *testing.T) {
	assert.Equal(t, StateSucceeded, StateForStatus(AuthorizationSucceeded))
	assert.Equal(t, StateProcessing, StateForStatus(AuthorizationProcessing))
	assert.Equal(t, StateFailed, StateForStatus(AuthorizationFailed))
	assert.Equal(t, StateFailed, StateForStatus(AuthorizationRequiresAction))
}

func TestCartTotals(t *testing.T) {
	cart := &Cart{Lines: []CartLine{
		{ProductRef: "p1", UnitPrice: decimal.RequireFromString("199.99"), Quantity: 2},
		{ProductRef: "p2", UnitPrice: decimal.RequireFromString("0.01"), Quantity: 3},
	}}

	assert.True(t, decimal.RequireFromString("400.01").Equal(cart.Total()))
	assert.Equal(t, 5, cart.ItemCount())
	assert.False(t, cart.IsEmpty())

	var nilCart *Cart
	assert.True(t, nilCart.IsEmpty())
}

func TestCartLine_Matches(t *testing.T) {
	l := CartLine{ProductRef: "p1", Size: "M", Color: "red"}
	assert.True(t, l.Matches("p1", "M", "red"))
	assert.False(t, l.Matches("p1", "L", "red"))
	assert.False(t, l.Matches("p1", "M", ""))
}

func TestProductOffers(t *testing.T) {
	p := &Product{Sizes: []string{"S", "M"}}
	assert.True(t, p.HasSize("M"))
	assert.False(t, p.HasSize("XL"))
	assert.False(t, p.HasSize(""))
	assert.True(t, p.HasColor(""))
	assert.False(t, p.HasColor("red"))
}
