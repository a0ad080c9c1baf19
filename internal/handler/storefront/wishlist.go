package storefront

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
)

// WishlistHandler handles saved products. A signed-in shopper's wishlist
// belongs to their identity; an anonymous one belongs to the browsing
// session until sign-in folds it in.
type WishlistHandler struct {
	wishlists domain.WishlistService
}

func NewWishlistHandler(wishlists domain.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists}
}

type wishlistResponse struct {
	Items []domain.WishlistItem `json:"items"`
	Count int                   `json:"count"`
}

func newWishlistResponse(w *domain.Wishlist) wishlistResponse {
	items := w.Items
	if items == nil {
		items = []domain.WishlistItem{}
	}
	return wishlistResponse{Items: items, Count: len(items)}
}

// View handles GET /api/wishlist
func (h *WishlistHandler) View(w http.ResponseWriter, r *http.Request) {
	wishlist, err := h.wishlists.GetWishlist(r.Context(), domain.StateOwnerFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newWishlistResponse(wishlist))
}

// Toggle handles POST /api/wishlist/items. Posting a saved product unsaves it.
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductRef string `json:"productRef"`
	}
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.ProductRef == "" {
		handler.ErrorResponse(w, r, domain.NewValidationError("wishlist.toggle", "productRef", "is required"))
		return
	}

	wishlist, saved, err := h.wishlists.Toggle(r.Context(), domain.StateOwnerFromContext(r.Context()), req.ProductRef)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, struct {
		wishlistResponse
		Saved bool `json:"saved"`
	}{newWishlistResponse(wishlist), saved})
}

// Remove handles DELETE /api/wishlist/items/{productRef}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	wishlist, err := h.wishlists.Remove(r.Context(), domain.StateOwnerFromContext(r.Context()), r.PathValue("productRef"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newWishlistResponse(wishlist))
}
