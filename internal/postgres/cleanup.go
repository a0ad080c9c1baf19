package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CleanupStore deletes expired rows across the session tables.
type CleanupStore struct {
	pool *pgxpool.Pool
}

func NewCleanupStore(pool *pgxpool.Pool) *CleanupStore {
	return &CleanupStore{pool: pool}
}

func (s *CleanupStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "user_sessions", `DELETE FROM user_sessions WHERE expires_at <= $1`, now)
}

// DeleteExpiredResetTokens removes tokens that are expired or already used.
func (s *CleanupStore) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "password_reset_tokens",
		`DELETE FROM password_reset_tokens WHERE expires_at <= $1 OR used_at IS NOT NULL`, now)
}

func (s *CleanupStore) DeleteExpiredSessionState(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, "session_state", `DELETE FROM session_state WHERE expires_at <= $1`, now)
}

func (s *CleanupStore) deleteExpired(ctx context.Context, table, query string, now time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired %s: %w", table, err)
	}
	return result.RowsAffected(), nil
}
