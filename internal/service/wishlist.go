package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// WishlistService implements domain.WishlistService. Saved items snapshot
// title, price and image from the catalog.
type WishlistService struct {
	wishlists domain.WishlistStore
	catalog   domain.CatalogService
	logger    *slog.Logger

	now func() time.Time
}

var _ domain.WishlistService = (*WishlistService)(nil)

func NewWishlistService(wishlists domain.WishlistStore, catalog domain.CatalogService, logger *slog.Logger) *WishlistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WishlistService{
		wishlists: wishlists,
		catalog:   catalog,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *WishlistService) GetWishlist(ctx context.Context, ownerKey string) (*domain.Wishlist, error) {
	if ownerKey == "" {
		return nil, domain.ErrSessionRequired
	}
	wishlist, err := s.wishlists.GetWishlist(ctx, ownerKey)
	if err != nil {
		return nil, domain.Internal(err, "wishlist.get", "failed to load wishlist")
	}
	if wishlist.Items == nil {
		wishlist.Items = []domain.WishlistItem{}
	}
	return wishlist, nil
}

// Toggle saves or unsaves a product.
func (s *WishlistService) Toggle(ctx context.Context, ownerKey, productRef string) (*domain.Wishlist, bool, error) {
	const op = "wishlist.toggle"

	wishlist, err := s.GetWishlist(ctx, ownerKey)
	if err != nil {
		return nil, false, err
	}

	if i := wishlist.Index(productRef); i >= 0 {
		wishlist.Items = append(wishlist.Items[:i], wishlist.Items[i+1:]...)
		if err := s.save(ctx, op, wishlist, "unsave"); err != nil {
			return nil, false, err
		}
		return wishlist, false, nil
	}

	product, err := s.catalog.GetProduct(ctx, productRef)
	if err != nil {
		return nil, false, err
	}
	wishlist.Items = append(wishlist.Items, domain.WishlistItem{
		ProductRef:   product.ID,
		Title:        product.Title,
		UnitPrice:    product.Price,
		DisplayImage: displayImage(product),
		AddedAt:      s.now(),
	})
	if err := s.save(ctx, op, wishlist, "save"); err != nil {
		return nil, false, err
	}
	return wishlist, true, nil
}

func (s *WishlistService) Remove(ctx context.Context, ownerKey, productRef string) (*domain.Wishlist, error) {
	const op = "wishlist.remove"

	wishlist, err := s.GetWishlist(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	i := wishlist.Index(productRef)
	if i < 0 {
		return nil, domain.ErrWishlistItemNotFound
	}
	wishlist.Items = append(wishlist.Items[:i], wishlist.Items[i+1:]...)

	if err := s.save(ctx, op, wishlist, "remove"); err != nil {
		return nil, err
	}
	return wishlist, nil
}

func (s *WishlistService) save(ctx context.Context, op string, wishlist *domain.Wishlist, action string) error {
	wishlist.UpdatedAt = s.now()
	if err := s.wishlists.SaveWishlist(ctx, wishlist); err != nil {
		return domain.Internal(err, op, "failed to save wishlist")
	}
	if m := telemetry.Business; m != nil {
		m.WishlistUpdated.WithLabelValues(action).Inc()
	}
	return nil
}
