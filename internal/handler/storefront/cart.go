package storefront

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
	"github.com/shopspring/decimal"
)

// CartHandler handles the session cart routes. Carts belong to the browsing
// session, not to a login, so none of these require authentication.
type CartHandler struct {
	carts domain.CartService
}

func NewCartHandler(carts domain.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartResponse struct {
	Lines     []domain.CartLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"itemCount"`
}

func newCartResponse(cart *domain.Cart) cartResponse {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return cartResponse{Lines: lines, Total: cart.Total(), ItemCount: cart.ItemCount()}
}

type cartItemRequest struct {
	ProductRef string `json:"productRef"`
	Size       string `json:"size"`
	Color      string `json:"color"`
	Quantity   int    `json:"quantity"`
}

// View handles GET /api/cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), domain.SessionIDFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Add handles POST /api/cart/items. Quantity defaults to 1.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.AddItem(r.Context(), domain.SessionIDFromContext(r.Context()), req.ProductRef, req.Size, req.Color, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Update handles PATCH /api/cart/items
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), domain.SessionIDFromContext(r.Context()), req.ProductRef, req.Size, req.Color, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Remove handles DELETE /api/cart/items?productRef=&size=&color=
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cart, err := h.carts.RemoveItem(r.Context(), domain.SessionIDFromContext(r.Context()), q.Get("productRef"), q.Get("size"), q.Get("color"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), domain.SessionIDFromContext(r.Context())); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
