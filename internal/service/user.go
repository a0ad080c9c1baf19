package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/hlin/internal/auth"
	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/telemetry"
	"github.com/google/uuid"
)

// SessionDuration is how long a login stays valid.
const SessionDuration = 7 * 24 * time.Hour

const (
	minNameLength = 2
	maxNameLength = 80
)

// UserService implements domain.UserService.
type UserService struct {
	users  domain.UserStore
	logger *slog.Logger

	now func() time.Time
}

var _ domain.UserService = (*UserService)(nil)

func NewUserService(users domain.UserStore, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// registration is validated as a whole so every bad field is reported.
type registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a new account.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	const op = "user.register"

	reg := registration{Name: strings.TrimSpace(name), Email: normalizeEmail(email), Password: password}

	var verr error
	if err := validate.Struct(reg); err != nil {
		verr = validationError(op, err)
		if !domain.IsValidationError(verr) {
			return nil, verr
		}
	}
	if n := utf8.RuneCountInString(reg.Name); n > 0 && (n < minNameLength || n > maxNameLength) {
		verr = addField(verr, op, "name", "must be between 2 and 80 characters")
	}
	if reg.Password != "" && len(reg.Password) < auth.MinPasswordLength {
		verr = addField(verr, op, "password", "must be at least 8 characters")
	}
	if verr != nil {
		return nil, verr
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to secure password")
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Internal(err, op, "failed to create account")
	}

	if m := telemetry.Business; m != nil {
		m.Signups.Inc()
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return user, nil
}

func addField(err error, op, field, message string) error {
	if err == nil {
		return domain.NewValidationError(op, field, message)
	}
	return domain.AddFieldError(err, field, message)
}

// Authenticate checks credentials. Unknown emails and wrong passwords fail
// the same way.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	const op = "user.authenticate"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recordLoginFailure("user_not_found")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(err, op, "failed to sign in")
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.recordLoginFailure("invalid_password")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(err, op, "failed to sign in")
	}

	if m := telemetry.Business; m != nil {
		m.Logins.Inc()
	}
	return user, nil
}

func (s *UserService) recordLoginFailure(reason string) {
	if m := telemetry.Business; m != nil {
		m.LoginFailed.WithLabelValues(reason).Inc()
	}
}

// CreateSession issues a bearer token for userID.
func (s *UserService) CreateSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, "user.create_session", "failed to create session")
	}

	session := &domain.UserSession{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(SessionDuration),
	}
	if err := s.users.CreateSession(ctx, session); err != nil {
		return nil, domain.Internal(err, "user.create_session", "failed to create session")
	}
	return session, nil
}

// GetUserBySessionToken resolves a bearer token. Expired sessions are
// deleted and reported as ErrSessionExpired.
func (s *UserService) GetUserBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.get_by_session"

	if token == "" {
		return nil, domain.ErrSessionExpired
	}

	session, err := s.users.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}

	if session.Expired(s.now()) {
		if err := s.users.DeleteSession(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "error", err)
		}
		return nil, domain.ErrSessionExpired
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	return user, nil
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.users.DeleteSession(ctx, token); err != nil {
		return domain.Internal(err, "user.logout", "failed to sign out")
	}
	return nil
}
