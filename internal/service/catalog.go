package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/hlin/internal/catalog"
	"github.com/dukerupert/hlin/internal/domain"
)

// CatalogService serves a fixed product list held in memory.
type CatalogService struct {
	products []domain.Product
	byID     map[string]int
}

var _ domain.CatalogService = (*CatalogService)(nil)

// NewCatalogService loads the embedded catalog.
func NewCatalogService() (*CatalogService, error) {
	products, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return NewCatalogServiceFromProducts(products), nil
}

// NewCatalogServiceFromProducts serves the given products as-is.
func NewCatalogServiceFromProducts(products []domain.Product) *CatalogService {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &CatalogService{products: products, byID: byID}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p := s.products[i]
	return &p, nil
}
