// Package cookie sets and clears the storefront's cookies with consistent
// scoping and security attributes.
package cookie

import (
	"net/http"
)

// Config holds cookie settings shared by every cookie the API writes.
type Config struct {
	// Domain scopes cookies to a parent domain (e.g. "shop.example.com").
	// Empty means host-only cookies.
	Domain string

	// Secure requires HTTPS. True in production, false in development.
	Secure bool
}

func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// SetSession sets an HttpOnly cookie that JavaScript cannot read.
func (c *Config) SetSession(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, c.build(name, value, maxAge, true))
}

// SetReadable sets a cookie the browser client must be able to read, such
// as the CSRF token it echoes back in a header.
func (c *Config) SetReadable(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, c.build(name, value, maxAge, false))
}

// ClearSession removes a cookie. Domain and path must match the original.
func (c *Config) ClearSession(w http.ResponseWriter, name string) {
	http.SetCookie(w, c.build(name, "", -1, true))
}

func (c *Config) build(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
