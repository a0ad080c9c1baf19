package storefront

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
)

// ProductHandler serves the read-only catalog.
type ProductHandler struct {
	catalog domain.CatalogService
}

func NewProductHandler(catalog domain.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	handler.WriteJSON(w, http.StatusOK, map[string][]domain.Product{"products": products})
}

// Get handles GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	handler.WriteJSON(w, http.StatusOK, product)
}
