package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ordersAuthorizationConstraint = "orders_payment_authorization_id_key"

// OrderStore implements domain.OrderStore using PostgreSQL.
// Uniqueness per payment authorization is enforced by a UNIQUE constraint.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id::text, owner_id::text, lines, total_amount_minor, currency,
		shipping_address, payment_authorization_id, status, created_at`

func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal order lines: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (id, owner_id, lines, total_amount_minor, currency,
			shipping_address, payment_authorization_id, status, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.pool.Exec(ctx, query,
		order.ID,
		order.OwnerID,
		lines,
		toMinor(order.TotalAmount),
		order.Currency,
		address,
		order.PaymentAuthorizationID,
		string(order.Status),
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, ordersAuthorizationConstraint) {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	if !validUUID(id) {
		return nil, domain.ErrOrderNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1::uuid`, id)
	return scanOrder(row)
}

func (s *OrderStore) GetByAuthorizationID(ctx context.Context, authorizationID string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_authorization_id = $1`, authorizationID)
	return scanOrder(row)
}

func (s *OrderStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	if !validUUID(ownerID) {
		return []domain.Order{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE owner_id = $1::uuid
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o          domain.Order
		lines      []byte
		address    []byte
		totalMinor int64
		status     string
	)
	err := row.Scan(
		&o.ID,
		&o.OwnerID,
		&lines,
		&totalMinor,
		&o.Currency,
		&address,
		&o.PaymentAuthorizationID,
		&status,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	o.TotalAmount = decimal.New(totalMinor, -2)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()

	return &o, nil
}

// toMinor converts a major-unit amount to minor units, rounding half away from zero.
func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
