package storefront

import (
	"net/http"
	"strings"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/handler"
)

const forgotPasswordMessage = "If an account exists for that email, a reset link is on its way."

// PasswordResetHandler handles POST /api/forgot-password and
// POST /api/reset-password.
type PasswordResetHandler struct {
	resets domain.PasswordResetService
}

func NewPasswordResetHandler(resets domain.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Forgot always answers 202 with the same message so the response does not
// reveal whether the email is registered.
func (h *PasswordResetHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		handler.ErrorResponse(w, r, domain.NewValidationError("password_reset.request", "email", "is required"))
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusAccepted, map[string]string{"message": forgotPasswordMessage})
}

// Reset sets the new password and answers 204.
func (h *PasswordResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.resets.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
