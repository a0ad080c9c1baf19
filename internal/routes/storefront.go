package routes

import (
	"github.com/dukerupert/hlin/internal/middleware"
	"github.com/dukerupert/hlin/internal/router"
)

// RegisterStorefrontRoutes registers the catalog, cart, wishlist and
// identity routes. None of them require a logged-in shopper.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Product browsing
	r.Get("/api/products", deps.ProductHandler.List)
	r.Get("/api/products/{id}", deps.ProductHandler.Get)

	// Shopping cart
	small := r.Group(middleware.MaxBodySize(middleware.SmallMaxBodySize))
	r.Get("/api/cart", deps.CartHandler.View)
	r.Delete("/api/cart", deps.CartHandler.Clear)
	small.Post("/api/cart/items", deps.CartHandler.Add)
	small.Patch("/api/cart/items", deps.CartHandler.Update)
	r.Delete("/api/cart/items", deps.CartHandler.Remove)

	// Wishlist
	r.Get("/api/wishlist", deps.WishlistHandler.View)
	small.Post("/api/wishlist/items", deps.WishlistHandler.Toggle)
	r.Delete("/api/wishlist/items/{productRef}", deps.WishlistHandler.Remove)

	// Authentication
	r.Post("/api/logout", deps.AuthHandler.Logout)
	r.Get("/api/me", deps.AuthHandler.Me)

	// Credential endpoints are rate limited
	limited := small
	if deps.AuthLimiter != nil {
		limited = small.Group(deps.AuthLimiter.Middleware)
	}
	limited.Post("/api/register", deps.AuthHandler.Register)
	limited.Post("/api/login", deps.AuthHandler.Login)
	limited.Post("/api/forgot-password", deps.PasswordResetHandler.Forgot)
	limited.Post("/api/reset-password", deps.PasswordResetHandler.Reset)
}
