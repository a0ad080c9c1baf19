package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// CartService implements domain.CartService. Prices and titles always come
// from the catalog, never from the client.
type CartService struct {
	carts   domain.CartStore
	catalog domain.CatalogService
	logger  *slog.Logger

	now func() time.Time
}

var _ domain.CartService = (*CartService)(nil)

func NewCartService(carts domain.CartStore, catalog domain.CatalogService, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the session's cart. A session with no cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}
	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, domain.Internal(err, "cart.get", "failed to load cart")
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return cart, nil
}

// AddItem adds quantity units of a product variant. Adding a variant that is
// already in the cart increases its quantity.
func (s *CartService) AddItem(ctx context.Context, sessionID, productRef, size, color string, quantity int) (*domain.Cart, error) {
	const op = "cart.add_item"

	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productRef)
	if err != nil {
		return nil, err
	}
	if !product.HasSize(size) {
		return nil, domain.NewValidationError(op, "size", "is not offered for this product")
	}
	if !product.HasColor(color) {
		return nil, domain.NewValidationError(op, "color", "is not offered for this product")
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range cart.Lines {
		if cart.Lines[i].Matches(productRef, size, color) {
			cart.Lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductRef:   product.ID,
			Title:        product.Title,
			UnitPrice:    product.Price,
			Quantity:     quantity,
			Size:         size,
			Color:        color,
			DisplayImage: displayImage(product),
		})
	}

	return s.save(ctx, op, cart, "add")
}

// UpdateQuantity sets the quantity of a line. Zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productRef, size, color string, quantity int) (*domain.Cart, error) {
	const op = "cart.update_quantity"

	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, sessionID, productRef, size, color)
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := findLine(cart.Lines, productRef, size, color)
	if i < 0 {
		return nil, domain.ErrCartLineNotFound
	}
	cart.Lines[i].Quantity = quantity

	return s.save(ctx, op, cart, "update_quantity")
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productRef, size, color string) (*domain.Cart, error) {
	const op = "cart.remove_item"

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := findLine(cart.Lines, productRef, size, color)
	if i < 0 {
		return nil, domain.ErrCartLineNotFound
	}
	cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)

	return s.save(ctx, op, cart, "remove")
}

func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrSessionRequired
	}
	if err := s.carts.ClearCart(ctx, sessionID); err != nil {
		return domain.Internal(err, "cart.clear", "failed to clear cart")
	}
	if m := telemetry.Business; m != nil {
		m.CartCleared.WithLabelValues("manual").Inc()
	}
	return nil
}

func (s *CartService) save(ctx context.Context, op string, cart *domain.Cart, action string) (*domain.Cart, error) {
	cart.UpdatedAt = s.now()
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to save cart")
	}
	if m := telemetry.Business; m != nil {
		m.CartUpdated.WithLabelValues(action).Inc()
	}
	return cart, nil
}

func findLine(lines []domain.CartLine, productRef, size, color string) int {
	for i, l := range lines {
		if l.Matches(productRef, size, color) {
			return i
		}
	}
	return -1
}

func displayImage(p *domain.Product) string {
	if len(p.Thumbnails) > 0 {
		return p.Thumbnails[0]
	}
	return p.BackgroundImage
}
