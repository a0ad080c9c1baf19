package routes

import (
	"github.com/dukerupert/hlin/internal/middleware"
	"github.com/dukerupert/hlin/internal/router"
)

// RegisterCheckoutRoutes registers payment authorization, draft staging,
// reconciliation and order history. Every route requires a logged-in
// shopper.
func RegisterCheckoutRoutes(r *router.Router, deps CheckoutDeps) {
	authed := r.Group(middleware.RequireAuth)

	// Checkout flow
	authed.Post("/api/payment-authorizations", deps.CheckoutHandler.BeginAuthorization)
	authed.Post("/api/checkout/draft", deps.CheckoutHandler.StageDraft)
	authed.Post("/api/checkout/reconcile", deps.CheckoutHandler.Reconcile)
	authed.Get("/api/checkout/return", deps.CheckoutHandler.Return)

	// Orders
	authed.Post("/api/orders", deps.OrderHandler.Create)
	authed.Get("/api/orders", deps.OrderHandler.List)
	authed.Get("/api/orders/{id}", deps.OrderHandler.Get)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
