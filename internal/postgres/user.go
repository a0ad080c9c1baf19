package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersEmailConstraint = "users_email_key"

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure UserStore implements domain.UserStore.
var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore instance.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// =============================================================================
// Accounts
// =============================================================================

// CreateUser inserts a user. Emails are stored lower-cased.
func (s *UserStore) CreateUser(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`, u.Name, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, usersEmailConstraint) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID.
func (s *UserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validUUID(id) {
		return nil, domain.ErrUserNotFound
	}
	return s.getUser(ctx, `WHERE id = $1::uuid`, id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *UserStore) getUser(ctx context.Context, where string, arg string) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, email, password_hash, created_at
		FROM users `+where, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// UpdatePassword replaces a user's password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if !validUUID(userID) {
		return domain.ErrUserNotFound
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3::uuid
	`, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// Login sessions
// =============================================================================

// CreateSession stores a bearer token for a user.
func (s *UserStore) CreateSession(ctx context.Context, session *domain.UserSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_sessions (token, user_id, expires_at)
		VALUES ($1, $2::uuid, $3)
	`, session.Token, session.UserID, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token. Expiry is checked by the caller.
func (s *UserStore) GetSession(ctx context.Context, token string) (*domain.UserSession, error) {
	var sess domain.UserSession
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id::text, expires_at FROM user_sessions WHERE token = $1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionExpired
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &sess, nil
}

// DeleteSession logs out a single session.
func (s *UserStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions logs a user out everywhere.
func (s *UserStore) DeleteUserSessions(ctx context.Context, userID string) error {
	if !validUUID(userID) {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1::uuid`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// =============================================================================
// Password reset tokens
// =============================================================================

// PasswordResetStore implements domain.PasswordResetStore using PostgreSQL.
type PasswordResetStore struct {
	pool *pgxpool.Pool
}

var _ domain.PasswordResetStore = (*PasswordResetStore)(nil)

func NewPasswordResetStore(pool *pgxpool.Pool) *PasswordResetStore {
	return &PasswordResetStore{pool: pool}
}

func (s *PasswordResetStore) CreateResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2::uuid, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken marks the token used in a single statement; of two
// concurrent redemptions only one returns the user id.
func (s *PasswordResetStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING user_id::text
	`, tokenHash, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrInvalidResetToken
		}
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}
