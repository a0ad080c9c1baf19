package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// ShopperStateService implements domain.ShopperStateService.
//
// A signed-in shopper's cart lives under the current browsing session so
// checkout can find it; between sign-ins it is parked under the identity's
// owner key. The wishlist of a signed-in shopper always lives under the
// owner key.
type ShopperStateService struct {
	carts     domain.CartStore
	drafts    domain.DraftStore
	wishlists domain.WishlistStore
	logger    *slog.Logger

	now func() time.Time
}

var _ domain.ShopperStateService = (*ShopperStateService)(nil)

func NewShopperStateService(carts domain.CartStore, drafts domain.DraftStore, wishlists domain.WishlistStore, logger *slog.Logger) *ShopperStateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShopperStateService{
		carts:     carts,
		drafts:    drafts,
		wishlists: wishlists,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ShopperStateService) SignIn(ctx context.Context, fromSessionID, toSessionID, userID string) (*domain.Cart, error) {
	const op = "shopper.sign_in"

	if toSessionID == "" || userID == "" {
		return nil, domain.ErrSessionRequired
	}
	owner := domain.OwnerKey(userID)

	saved, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load saved cart")
	}
	lines := saved.Lines
	if fromSessionID != "" {
		guest, err := s.carts.GetCart(ctx, fromSessionID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load cart")
		}
		lines = mergeLines(lines, guest.Lines)
	}

	cart := &domain.Cart{SessionID: toSessionID, Lines: lines, UpdatedAt: s.now()}
	if len(lines) > 0 {
		if err := s.carts.SaveCart(ctx, cart); err != nil {
			return nil, domain.Internal(err, op, "failed to save cart")
		}
	}
	if err := s.carts.ClearCart(ctx, owner); err != nil {
		return nil, domain.Internal(err, op, "failed to clear saved cart")
	}

	if fromSessionID != "" && fromSessionID != toSessionID {
		if err := s.mergeWishlist(ctx, op, fromSessionID, owner); err != nil {
			return nil, err
		}
		s.dropSession(ctx, fromSessionID)
	}

	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return cart, nil
}

func (s *ShopperStateService) SignOut(ctx context.Context, sessionID, userID string) error {
	const op = "shopper.sign_out"

	if sessionID == "" || userID == "" {
		return nil
	}
	owner := domain.OwnerKey(userID)

	cart, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return domain.Internal(err, op, "failed to load cart")
	}
	if !cart.IsEmpty() {
		saved, err := s.carts.GetCart(ctx, owner)
		if err != nil {
			return domain.Internal(err, op, "failed to load saved cart")
		}
		saved.SessionID = owner
		saved.Lines = mergeLines(saved.Lines, cart.Lines)
		saved.UpdatedAt = s.now()
		if err := s.carts.SaveCart(ctx, saved); err != nil {
			return domain.Internal(err, op, "failed to save cart")
		}
	}

	s.dropSession(ctx, sessionID)
	if m := telemetry.Business; m != nil {
		m.CartCleared.WithLabelValues("sign_out").Inc()
	}
	return nil
}

// mergeWishlist moves the anonymous session's wishlist into the owner's.
func (s *ShopperStateService) mergeWishlist(ctx context.Context, op, sessionID, owner string) error {
	guest, err := s.wishlists.GetWishlist(ctx, sessionID)
	if err != nil {
		return domain.Internal(err, op, "failed to load wishlist")
	}
	if guest.IsEmpty() {
		return nil
	}

	saved, err := s.wishlists.GetWishlist(ctx, owner)
	if err != nil {
		return domain.Internal(err, op, "failed to load saved wishlist")
	}
	saved.OwnerKey = owner
	for _, item := range guest.Items {
		if !saved.Contains(item.ProductRef) {
			saved.Items = append(saved.Items, item)
		}
	}
	saved.UpdatedAt = s.now()
	if err := s.wishlists.SaveWishlist(ctx, saved); err != nil {
		return domain.Internal(err, op, "failed to save wishlist")
	}

	if err := s.wishlists.DeleteWishlist(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete session wishlist", "error", err)
	}
	return nil
}

// dropSession deletes a session's cart and staged draft.
func (s *ShopperStateService) dropSession(ctx context.Context, sessionID string) {
	if err := s.carts.ClearCart(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear session cart", "error", err)
	}
	if err := s.drafts.DeleteDraft(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete session draft", "error", err)
	}
}

// mergeLines adds extra into base, summing quantities of the same variant.
func mergeLines(base, extra []domain.CartLine) []domain.CartLine {
	out := append([]domain.CartLine(nil), base...)
	for _, l := range extra {
		if i := findLine(out, l.ProductRef, l.Size, l.Color); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}
