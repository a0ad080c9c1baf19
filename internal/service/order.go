package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/hlin/internal/billing"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// OrderService implements domain.OrderService on top of an OrderStore.
type OrderService struct {
	orders   domain.OrderStore
	billing  billing.Provider
	currency string
	logger   *slog.Logger

	// verifyPayments makes CreateOrder confirm with the gateway that the
	// authorization succeeded before inserting.
	verifyPayments bool

	now func() time.Time
}

var _ domain.OrderService = (*OrderService)(nil)

// NewOrderService creates an order service. provider may be nil when
// verifyPayments is false.
func NewOrderService(orders domain.OrderStore, provider billing.Provider, currency string, verifyPayments bool, logger *slog.Logger) *OrderService {
	if currency == "" {
		currency = DefaultCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		orders:         orders,
		billing:        provider,
		currency:       strings.ToLower(currency),
		verifyPayments: verifyPayments && provider != nil,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder records an order submitted by the client after payment.
// A second order for the same authorization fails with ErrDuplicatePayment.
func (s *OrderService) CreateOrder(ctx context.Context, identity *domain.Identity, params domain.NewOrderParams) (*domain.Order, error) {
	const op = "order.create"

	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	if len(params.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := validate.Struct(params); err != nil {
		return nil, validationError(op, err)
	}

	ctx, span := telemetry.StartSpan(ctx, op, attribute.String("authorization_id", params.AuthorizationID))
	defer span.End()

	currency := s.currency
	if s.verifyPayments {
		auth, err := s.verify(ctx, op, identity, params.AuthorizationID)
		if err != nil {
			telemetry.RecordSpanError(span, err)
			return nil, err
		}
		if auth.Currency != "" {
			currency = auth.Currency
		}
	}

	total := params.Total
	if lines := domain.LinesTotal(params.Lines); !total.Equal(lines) {
		s.logger.WarnContext(ctx, "submitted total differs from line total",
			"authorization_id", params.AuthorizationID,
			"total", total.StringFixed(2),
			"lines_total", lines.StringFixed(2),
		)
	}

	order := &domain.Order{
		ID:                     uuid.NewString(),
		OwnerID:                identity.ID,
		Lines:                  params.Lines,
		TotalAmount:            total,
		Currency:               currency,
		ShippingAddress:        params.ShippingAddress,
		PaymentAuthorizationID: params.AuthorizationID,
		Status:                 domain.OrderStatusPaid,
		CreatedAt:              s.now(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if domain.IsCode(err, domain.EDUPLICATE) {
			if m := telemetry.Business; m != nil {
				m.DuplicatePayments.WithLabelValues(sourceEndpoint).Inc()
			}
			return nil, domain.ErrDuplicatePayment
		}
		telemetry.RecordSpanError(span, err)
		return nil, domain.Internal(err, op, "failed to record order")
	}

	telemetry.SetSpanSuccess(span)
	recordOrderCreated(order, sourceEndpoint)

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"authorization_id", order.PaymentAuthorizationID,
		"owner_id", order.OwnerID,
		"source", sourceEndpoint,
	)

	return order, nil
}

func (s *OrderService) verify(ctx context.Context, op string, identity *domain.Identity, authorizationID string) (*domain.PaymentAuthorization, error) {
	pi, err := s.billing.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{PaymentIntentID: authorizationID})
	if err != nil {
		if errors.Is(err, billing.ErrPaymentIntentNotFound) {
			return nil, domain.WrapError(err, domain.EPAYMENT, op, domain.ErrPaymentFailed.Message)
		}
		return nil, domain.Gateway(err, op, billing.UserMessage(err))
	}

	auth := pi.Authorization()
	if owner := auth.Metadata[domain.MetadataUserID]; owner != "" && owner != identity.ID {
		return nil, domain.Forbidden(op, "This payment belongs to another account.")
	}
	if auth.Status != domain.AuthorizationSucceeded {
		return nil, &domain.Error{Code: domain.EPAYMENT, Op: op, Message: "Payment has not completed."}
	}
	return auth, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, identity *domain.Identity) ([]domain.Order, error) {
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	orders, err := s.orders.ListByOwner(ctx, identity.ID)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// GetOrder returns one of the caller's orders. Orders owned by someone else
// are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, identity *domain.Identity, id string) (*domain.Order, error) {
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}
	if order.OwnerID != identity.ID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}
