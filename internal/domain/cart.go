package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartLineNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrSessionRequired  = &Error{Code: EINVALID, Message: "A browsing session is required"}
)

// CartLine is one purchasable item held in a session cart.
// Lines are identified by (ProductRef, Size, Color); adding the same triple
// again merges quantities.
type CartLine struct {
	ProductRef   string          `json:"productRef" validate:"required"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity" validate:"gte=1"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
	DisplayImage string          `json:"displayImage,omitempty"`
}

// Matches reports whether the line holds the given product variant.
func (l CartLine) Matches(productRef, size, color string) bool {
	return l.ProductRef == productRef && l.Size == size && l.Color == color
}

// Subtotal returns unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums the subtotals of lines using exact decimal arithmetic.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Cart is the server-held cart for one browsing session.
type Cart struct {
	SessionID string     `json:"sessionId"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Total returns the sum of all line subtotals.
func (c *Cart) Total() decimal.Decimal {
	return LinesTotal(c.Lines)
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// CartStore persists carts keyed by session id.
// GetCart returns an empty cart, not an error, when the session has none.
type CartStore interface {
	GetCart(ctx context.Context, sessionID string) (*Cart, error)
	SaveCart(ctx context.Context, cart *Cart) error
	ClearCart(ctx context.Context, sessionID string) error
}

// CartService provides business logic for session cart operations.
type CartService interface {
	// GetCart returns the session's cart, empty when nothing was added yet.
	GetCart(ctx context.Context, sessionID string) (*Cart, error)

	// AddItem adds a catalog product variant, merging into an existing line.
	AddItem(ctx context.Context, sessionID, productRef, size, color string, quantity int) (*Cart, error)

	// UpdateQuantity sets a line's quantity. Zero removes the line.
	UpdateQuantity(ctx context.Context, sessionID, productRef, size, color string, quantity int) (*Cart, error)

	// RemoveItem removes a line.
	RemoveItem(ctx context.Context, sessionID, productRef, size, color string) (*Cart, error)

	// Clear empties the cart.
	Clear(ctx context.Context, sessionID string) error
}
