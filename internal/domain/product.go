package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}

// Product is a catalog entry. The catalog is static and read-only.
type Product struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Subtitle        string           `json:"subtitle,omitempty"`
	Category        string           `json:"category,omitempty"`
	Description     string           `json:"description,omitempty"`
	Price           decimal.Decimal  `json:"price"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	Discount        int              `json:"discount,omitempty"`
	Rating          float64          `json:"rating,omitempty"`
	Sizes           []string         `json:"sizes,omitempty"`
	Colors          []string         `json:"colors,omitempty"`
	BackgroundImage string           `json:"backgroundImage,omitempty"`
	Thumbnails      []string         `json:"thumbnails,omitempty"`
}

// HasSize reports whether size is offered. Products without sizes accept "".
func (p *Product) HasSize(size string) bool {
	return offers(p.Sizes, size)
}

// HasColor reports whether color is offered. Products without colors accept "".
func (p *Product) HasColor(color string) bool {
	return offers(p.Colors, color)
}

func offers(options []string, v string) bool {
	if len(options) == 0 {
		return v == ""
	}
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// CatalogService reads the product catalog.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
}
