package domain

import (
	"context"
	"time"
)

// =============================================================================
// USER DOMAIN ERRORS
// =============================================================================

var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrEmailTaken         = &Error{Code: ECONFLICT, Message: "Email already used."}
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password."}
	ErrSessionExpired     = &Error{Code: EUNAUTHORIZED, Message: "Session expired"}
	ErrInvalidResetToken  = &Error{Code: EINVALID, Message: "This reset link is invalid or has expired."}
)

// Identity is the verified caller of a request.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// User is a registered storefront account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity returns the public identity of the user.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSession is a bearer credential issued at login.
type UserSession struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// UserStore persists accounts and their login sessions.
type UserStore interface {
	// CreateUser inserts u, filling ID and CreatedAt. Returns ErrEmailTaken
	// when the email is already registered.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	CreateSession(ctx context.Context, session *UserSession) error
	GetSession(ctx context.Context, token string) (*UserSession, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

// PasswordResetStore persists hashed, single-use reset tokens.
type PasswordResetStore interface {
	CreateResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken marks the token used and returns its user id.
	// Returns ErrInvalidResetToken when the token is unknown, used or expired.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// UserService provides account registration and login.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)

	// CreateSession issues a bearer token for the user.
	CreateSession(ctx context.Context, userID string) (*UserSession, error)
	GetUserBySessionToken(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
}

// PasswordResetService issues and redeems password reset tokens.
type PasswordResetService interface {
	// RequestReset emails a reset link. Unknown emails are not an error.
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}
