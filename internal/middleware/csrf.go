package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/dukerupert/hlin/internal/cookie"
	"github.com/dukerupert/hlin/internal/domain"
)

const (
	// CSRFTokenLength is the length of the CSRF token in bytes
	CSRFTokenLength = 32

	// CSRFCookieName is readable by the browser client, which echoes it back
	// in CSRFHeaderName.
	CSRFCookieName = "hlin_csrf"

	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFConfig configures CSRF protection
type CSRFConfig struct {
	Cookies *cookie.Config

	// CookieMaxAge is the max age of the CSRF cookie in seconds
	// Default: 86400 (24 hours)
	CookieMaxAge int

	// SkipPaths are paths that should skip CSRF validation.
	// Webhooks authenticate with their own signatures.
	SkipPaths []string
}

func DefaultCSRFConfig(cookies *cookie.Config) CSRFConfig {
	return CSRFConfig{
		Cookies:      cookies,
		CookieMaxAge: 86400,
		SkipPaths:    []string{"/webhooks/"},
	}
}

// CSRF applies a double-submit check to state-changing requests that
// authenticate with the auth cookie. Requests carrying an Authorization
// header are not exposed to cross-site forgery and pass through.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.Cookies == nil {
		panic("csrf: Cookies is required")
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = 86400
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range cfg.SkipPaths {
				if matchesPathPrefix(r.URL.Path, skipPath) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				var err error
				token, err = generateCSRFToken()
				if err != nil {
					respondWithError(w, r, domain.Internal(err, "csrf.token", "failed to generate csrf token"))
					return
				}
				cfg.Cookies.SetReadable(w, CSRFCookieName, token, cfg.CookieMaxAge)
			}

			if isSafeMethod(r.Method) || !usesAuthCookie(r) {
				next.ServeHTTP(w, r)
				return
			}

			if !validateCSRFToken(token, r.Header.Get(CSRFHeaderName)) {
				respondForbidden(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func usesAuthCookie(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return false
	}
	_, err := r.Cookie(AuthCookieName)
	return err == nil
}

func generateCSRFToken() (string, error) {
	b := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validateCSRFToken(cookieToken, submittedToken string) bool {
	if cookieToken == "" || submittedToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submittedToken)) == 1
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions ||
		method == http.MethodTrace
}

// matchesPathPrefix requires a path boundary after skipPath, so /webhooks
// does not match /webhooks-evil.
func matchesPathPrefix(requestPath, skipPath string) bool {
	if !strings.HasPrefix(requestPath, skipPath) {
		return false
	}
	if strings.HasSuffix(skipPath, "/") || len(requestPath) == len(skipPath) {
		return true
	}
	return requestPath[len(skipPath)] == '/'
}
