package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/hlin/internal/auth"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/email"
	"github.com/dukerupert/hlin/internal/telemetry"
)

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = time.Hour

// ResetMailer delivers password reset links. *email.Service implements it.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, data email.PasswordResetEmail) error
}

// PasswordResetService implements domain.PasswordResetService.
type PasswordResetService struct {
	users   domain.UserStore
	resets  domain.PasswordResetStore
	mailer  ResetMailer
	baseURL string
	logger  *slog.Logger

	now func() time.Time
}

var _ domain.PasswordResetService = (*PasswordResetService)(nil)

func NewPasswordResetService(users domain.UserStore, resets domain.PasswordResetStore, mailer ResetMailer, baseURL string, logger *slog.Logger) *PasswordResetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordResetService{
		users:   users,
		resets:  resets,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RequestReset emails a reset link when the address belongs to an account.
// Unknown addresses succeed silently so callers cannot enumerate accounts.
func (s *PasswordResetService) RequestReset(ctx context.Context, emailAddr string) error {
	const op = "password_reset.request"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return domain.Internal(err, op, "failed to request password reset")
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return domain.Internal(err, op, "failed to request password reset")
	}

	expiresAt := s.now().Add(ResetTokenTTL)
	if err := s.resets.CreateResetToken(ctx, user.ID, auth.HashToken(token), expiresAt); err != nil {
		return domain.Internal(err, op, "failed to request password reset")
	}

	if m := telemetry.Business; m != nil {
		m.PasswordResets.WithLabelValues("requested").Inc()
	}

	err = s.mailer.SendPasswordReset(ctx, email.PasswordResetEmail{
		Email:     user.Email,
		Name:      user.Name,
		ResetURL:  s.resetURL(token),
		ExpiresIn: ResetTokenTTL,
	})
	if err != nil {
		if m := telemetry.Business; m != nil {
			m.EmailFailed.WithLabelValues("password_reset").Inc()
		}
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			"user_id", user.ID,
			"error", err,
		)
		return domain.Internal(err, op, "failed to send password reset email")
	}

	if m := telemetry.Business; m != nil {
		m.EmailSent.WithLabelValues("password_reset").Inc()
	}
	return nil
}

func (s *PasswordResetService) resetURL(token string) string {
	return s.baseURL + "/login?token=" + url.QueryEscape(token)
}

// ResetPassword sets a new password using a single-use reset token and
// revokes every session of the user.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "password_reset.reset"

	if token == "" {
		return domain.ErrInvalidResetToken
	}
	if len(newPassword) < auth.MinPasswordLength {
		return domain.NewValidationError(op, "password", "must be at least 8 characters")
	}

	userID, err := s.resets.ConsumeResetToken(ctx, auth.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			return domain.ErrInvalidResetToken
		}
		return domain.Internal(err, op, "failed to reset password")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.Internal(err, op, "failed to secure password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return domain.Internal(err, op, "failed to reset password")
	}

	if err := s.users.DeleteUserSessions(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke sessions after password reset",
			"user_id", userID,
			"error", err,
		)
	}

	if m := telemetry.Business; m != nil {
		m.PasswordResets.WithLabelValues("completed").Inc()
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", userID)
	return nil
}
