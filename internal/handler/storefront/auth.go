package storefront

import (
	"net/http"
	"time"

	"github.com/dukerupert/hlin/internal/cookie"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
	"github.com/dukerupert/hlin/internal/middleware"
)

// AuthHandler handles registration, login, logout and the current user.
// Login answers with the bearer token and also sets it as an HttpOnly
// cookie for browser clients. Login and logout both start a new browsing
// session; the shopper's cart and wishlist follow the identity.
type AuthHandler struct {
	users   domain.UserService
	shopper domain.ShopperStateService
	cookies *cookie.Config
}

func NewAuthHandler(users domain.UserService, shopper domain.ShopperStateService, cookies *cookie.Config) *AuthHandler {
	return &AuthHandler{users: users, shopper: shopper, cookies: cookies}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      *domain.Identity `json:"user"`
	SessionID string           `json:"sessionId"`
	Cart      cartResponse     `json:"cart"`
}

// Register handles POST /api/register and signs the new user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *domain.User, status int) {
	session, err := h.users.CreateSession(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	previous := domain.SessionIDFromContext(r.Context())
	sessionID, err := middleware.IssueSession(w, h.cookies)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.shopper.SignIn(r.Context(), previous, sessionID, user.ID)
	if err != nil {
		middleware.GetLogger(r.Context()).Warn("failed to restore shopper state", "user_id", user.ID, "error", err)
		cart = &domain.Cart{SessionID: sessionID}
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	h.cookies.SetSession(w, middleware.AuthCookieName, session.Token, maxAge)

	handler.WriteJSON(w, status, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      user.Identity(),
		SessionID: sessionID,
		Cart:      newCartResponse(cart),
	})
}

// Logout handles POST /api/logout. It succeeds whether or not a session
// was present. A signed-in shopper's cart is parked under their identity and
// the browser gets a fresh, empty session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	if token := middleware.BearerToken(r); token != "" {
		if err := h.users.Logout(r.Context(), token); err != nil {
			logger.Warn("failed to delete session", "error", err)
		}
	}

	if identity := domain.IdentityFromContext(r.Context()); identity != nil {
		if err := h.shopper.SignOut(r.Context(), domain.SessionIDFromContext(r.Context()), identity.ID); err != nil {
			logger.Warn("failed to save shopper state", "user_id", identity.ID, "error", err)
		}
		if _, err := middleware.IssueSession(w, h.cookies); err != nil {
			logger.Warn("failed to start new session", "error", err)
		}
	}

	h.cookies.ClearSession(w, middleware.AuthCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := domain.IdentityFromContext(r.Context())
	if identity == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]*domain.Identity{"user": identity})
}
