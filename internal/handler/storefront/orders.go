package storefront

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
)

// OrderHandler serves the caller's orders.
type OrderHandler struct {
	orders domain.OrderService
}

func NewOrderHandler(orders domain.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create handles POST /api/orders. A second call for the same
// authorization id answers 400 with code "duplicate".
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params domain.NewOrderParams
	if err := handler.DecodeJSON(r, &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), domain.IdentityFromContext(r.Context()), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, map[string]string{"orderId": order.ID})
}

// List handles GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), domain.IdentityFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string][]domain.Order{"orders": orders})
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), domain.IdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, order)
}
