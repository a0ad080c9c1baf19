package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/hlin/internal/domain"
)

type contextKey string

// AuthCookieName carries the login token for browser clients that do not
// send an Authorization header.
const AuthCookieName = "hlin_auth"

// BearerToken returns the login token from the Authorization header or,
// failing that, the auth cookie.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithUser resolves the login token and adds the identity to the request
// context. It never rejects a request; RequireAuth does that.
func WithUser(users domain.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserBySessionToken(r.Context(), token)
			if err != nil {
				if !domain.IsCode(err, domain.EUNAUTHORIZED) {
					GetLogger(r.Context()).Warn("failed to resolve session", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithIdentity(r.Context(), user.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 when no identity is present.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
