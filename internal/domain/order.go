package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER DOMAIN ERRORS
// =============================================================================

var (
	ErrOrderNotFound    = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrDuplicatePayment = &Error{Code: EDUPLICATE, Message: "This payment has already been recorded."}
)

// OrderStatus is the lifecycle status of a recorded order.
type OrderStatus string

const (
	OrderStatusPaid OrderStatus = "paid"
)

// Order is the durable record of a successful checkout. At most one order
// exists per PaymentAuthorizationID; orders are read-only once created.
type Order struct {
	ID                     string          `json:"id"`
	OwnerID                string          `json:"ownerId"`
	Lines                  []CartLine      `json:"lines"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	Currency               string          `json:"currency"`
	ShippingAddress        ShippingAddress `json:"shippingAddress"`
	PaymentAuthorizationID string          `json:"paymentAuthorizationId"`
	Status                 OrderStatus     `json:"status"`
	CreatedAt              time.Time       `json:"createdAt"`
}

// NewOrderParams is the body of an order creation request.
type NewOrderParams struct {
	Lines           []CartLine      `json:"lines" validate:"required,min=1,dive"`
	Total           decimal.Decimal `json:"total" validate:"money"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	AuthorizationID string          `json:"authorizationId" validate:"required"`
}

// OrderStore persists orders.
// Create returns ErrDuplicatePayment when an order already holds the
// authorization id; uniqueness is enforced by the storage engine.
type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByAuthorizationID(ctx context.Context, authorizationID string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
}

// OrderService provides business logic for order operations.
type OrderService interface {
	// CreateOrder records an order for a paid authorization.
	CreateOrder(ctx context.Context, identity *Identity, params NewOrderParams) (*Order, error)

	// ListOrders returns the caller's orders, newest first.
	ListOrders(ctx context.Context, identity *Identity) ([]Order, error)

	// GetOrder returns one of the caller's orders.
	GetOrder(ctx context.Context, identity *Identity, id string) (*Order, error)
}
