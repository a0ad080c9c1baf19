// Package catalog embeds the static product list served by the storefront.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/hlin/internal/domain"
)

//go:embed products.json
var productsJSON []byte

// Load decodes the embedded product list.
func Load() ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(productsJSON, &products); err != nil {
		return nil, fmt.Errorf("decode products.json: %w", err)
	}
	return products, nil
}
