package routes

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/handler/storefront"
	"github.com/dukerupert/hlin/internal/middleware"
)

// StorefrontDeps contains dependencies for the shopper-facing JSON API
type StorefrontDeps struct {
	// Catalog
	ProductHandler *storefront.ProductHandler

	// Cart (session scoped, no login required)
	CartHandler *storefront.CartHandler

	// Wishlist (identity scoped when signed in, session scoped otherwise)
	WishlistHandler *storefront.WishlistHandler

	// Auth (register, login, logout, me)
	AuthHandler *storefront.AuthHandler

	// Password reset
	PasswordResetHandler *storefront.PasswordResetHandler

	// AuthLimiter throttles credential endpoints per client IP
	AuthLimiter *middleware.RateLimiter
}

// CheckoutDeps contains dependencies for authenticated checkout and order routes
type CheckoutDeps struct {
	CheckoutHandler *storefront.CheckoutHandler
	OrderHandler    *storefront.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for operational endpoints
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}
