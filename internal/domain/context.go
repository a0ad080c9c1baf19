// Package domain provides the core checkout types, error model and context
// helpers shared by services, stores and handlers.
//
// Context helpers centralize request-scoped data access so handlers never
// reach into middleware internals to find the caller or the browsing session.
package domain

import (
	"context"
	"strings"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// identityContextKey stores the verified caller in context.
	identityContextKey contextKey = iota

	// sessionContextKey stores the browsing session id in context.
	sessionContextKey

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- Identity Context Helpers ---

// NewContextWithIdentity returns a new context with the identity attached.
func NewContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity from context.
// Returns nil if the request is anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// IdentityIDFromContext returns the identity id, or "" for anonymous requests.
func IdentityIDFromContext(ctx context.Context) string {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.ID
	}
	return ""
}

// IsAuthenticated returns true if there is an identity in context.
func IsAuthenticated(ctx context.Context) bool {
	return IdentityFromContext(ctx) != nil
}

// --- Session Context Helpers ---

// NewContextWithSessionID returns a new context carrying the browsing session id.
func NewContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

// SessionIDFromContext retrieves the browsing session id.
// Returns empty string when no session middleware ran.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}

// OwnerKeyPrefix marks state keys that belong to an identity rather than a
// browsing session. Session ids never contain ':'.
const OwnerKeyPrefix = "user:"

// OwnerKey returns the state key for an identity's saved cart and wishlist.
func OwnerKey(userID string) string {
	return OwnerKeyPrefix + userID
}

// IsOwnerKey reports whether key was built by OwnerKey.
func IsOwnerKey(key string) bool {
	return len(key) > len(OwnerKeyPrefix) && strings.HasPrefix(key, OwnerKeyPrefix)
}

// StateOwnerFromContext returns the key for state that follows the shopper:
// the identity's owner key when signed in, otherwise the session id.
func StateOwnerFromContext(ctx context.Context) string {
	if id := IdentityIDFromContext(ctx); id != "" {
		return OwnerKey(id)
	}
	return SessionIDFromContext(ctx)
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
