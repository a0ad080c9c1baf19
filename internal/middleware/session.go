package middleware

import (
	"net/http"

	"github.com/dukerupert/hlin/internal/auth"
	"github.com/dukerupert/hlin/internal/cookie"
	"github.com/dukerupert/hlin/internal/domain"
)

const (
	// SessionCookieName identifies the browsing session that owns the cart
	// and the staged checkout draft.
	SessionCookieName = "hlin_session"

	// SessionHeader lets non-browser clients carry the session explicitly.
	SessionHeader = "X-Session-ID"

	sessionCookieMaxAge = 30 * 24 * 60 * 60
	maxSessionIDLength  = 128
)

// WithSession attaches the browsing session id to the request context,
// minting one when the request has none. The id is echoed back in both the
// cookie and the response header.
func WithSession(cookies *cookie.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionIDFromRequest(r)
			if id == "" {
				var err error
				id, err = IssueSession(w, cookies)
				if err != nil {
					respondWithError(w, r, err)
					return
				}
			} else {
				w.Header().Set(SessionHeader, id)
			}

			ctx := domain.NewContextWithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueSession mints a browsing session id and hands it to the client in
// the cookie and the response header, replacing any id the request carried.
// Login and logout call it so a session id chosen before sign-in never
// carries over.
func IssueSession(w http.ResponseWriter, cookies *cookie.Config) (string, error) {
	id, err := auth.GenerateSessionToken()
	if err != nil {
		return "", domain.Internal(err, "session.mint", "failed to start session")
	}
	cookies.SetSession(w, SessionCookieName, id, sessionCookieMaxAge)
	w.Header().Set(SessionHeader, id)
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); validSessionID(id) {
		return id
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && validSessionID(c.Value) {
		return c.Value
	}
	return ""
}

// validSessionID accepts URL-safe base64 characters only, so ids are safe to
// embed in storage keys.
func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
