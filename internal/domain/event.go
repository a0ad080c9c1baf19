package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SubjectOrderCreated is published once per recorded order.
const SubjectOrderCreated = "orders.created"

// OrderCreatedEvent is the payload of SubjectOrderCreated.
type OrderCreatedEvent struct {
	OrderID                string          `json:"orderId"`
	OwnerID                string          `json:"ownerId"`
	PaymentAuthorizationID string          `json:"paymentAuthorizationId"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	Currency               string          `json:"currency"`
	ItemCount              int             `json:"itemCount"`
	CreatedAt              time.Time       `json:"createdAt"`
}

// NewOrderCreatedEvent builds the event for o.
func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return OrderCreatedEvent{
		OrderID:                o.ID,
		OwnerID:                o.OwnerID,
		PaymentAuthorizationID: o.PaymentAuthorizationID,
		TotalAmount:            o.TotalAmount,
		Currency:               o.Currency,
		ItemCount:              n,
		CreatedAt:              o.CreatedAt,
	}
}

// EventPublisher delivers domain events. Publishing is best effort: the order
// is already durable when the event is sent.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error
}
