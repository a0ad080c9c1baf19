package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var ErrWishlistItemNotFound = &Error{Code: ENOTFOUND, Message: "Wishlist item not found"}

// WishlistItem is a saved product. Unlike a cart line it carries no variant
// or quantity.
type WishlistItem struct {
	ProductRef   string          `json:"productRef"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	DisplayImage string          `json:"displayImage,omitempty"`
	AddedAt      time.Time       `json:"addedAt"`
}

// Wishlist holds saved products for one owner: a signed-in identity (see
// OwnerKey) or an anonymous browsing session.
type Wishlist struct {
	OwnerKey  string         `json:"ownerKey"`
	Items     []WishlistItem `json:"items"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Index returns the position of productRef, or -1.
func (w *Wishlist) Index(productRef string) int {
	if w == nil {
		return -1
	}
	for i, item := range w.Items {
		if item.ProductRef == productRef {
			return i
		}
	}
	return -1
}

// Contains reports whether productRef is saved.
func (w *Wishlist) Contains(productRef string) bool {
	return w.Index(productRef) >= 0
}

// IsEmpty reports whether nothing is saved.
func (w *Wishlist) IsEmpty() bool {
	return w == nil || len(w.Items) == 0
}

// WishlistStore persists wishlists keyed by owner.
// GetWishlist returns an empty wishlist, not an error, when none exists.
type WishlistStore interface {
	GetWishlist(ctx context.Context, ownerKey string) (*Wishlist, error)
	SaveWishlist(ctx context.Context, wishlist *Wishlist) error
	DeleteWishlist(ctx context.Context, ownerKey string) error
}

// WishlistService provides business logic for saved products.
type WishlistService interface {
	// GetWishlist returns the owner's wishlist, empty when nothing is saved.
	GetWishlist(ctx context.Context, ownerKey string) (*Wishlist, error)

	// Toggle saves productRef, or unsaves it when already saved. The
	// returned bool reports whether the product is saved afterwards.
	Toggle(ctx context.Context, ownerKey, productRef string) (*Wishlist, bool, error)

	// Remove unsaves productRef.
	Remove(ctx context.Context, ownerKey, productRef string) (*Wishlist, error)
}

// ShopperStateService moves cart and wishlist state between a browsing
// session and a signed-in identity.
type ShopperStateService interface {
	// SignIn builds the new session's cart from the identity's saved cart
	// plus the anonymous session's cart, folds the anonymous wishlist into
	// the identity's, and drops the old session's state.
	SignIn(ctx context.Context, fromSessionID, toSessionID, userID string) (*Cart, error)

	// SignOut saves the session cart under the identity and clears the
	// session's cart and staged draft.
	SignOut(ctx context.Context, sessionID, userID string) error
}
