package jobs

import (
	"context"
	"fmt"
	"time"
)

// Job type constants for cleanup jobs
const (
	JobTypeCleanupExpired = "cleanup:expired"
)

// CleanupStore deletes rows whose expiry has passed. Each method returns
// the number of rows removed.
type CleanupStore interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredSessionState(ctx context.Context, now time.Time) (int64, error)
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	SessionsDeleted     int64 `json:"sessions_deleted"`
	ResetTokensDeleted  int64 `json:"reset_tokens_deleted"`
	SessionStateDeleted int64 `json:"session_state_deleted"`
}

// Total is the number of rows removed across all tables.
func (r *CleanupResult) Total() int64 {
	return r.SessionsDeleted + r.ResetTokensDeleted + r.SessionStateDeleted
}

// CleanupExpired deletes expired login sessions, password reset tokens and
// Postgres-held cart/draft state. Staged drafts kept in Redis expire by TTL
// and are not touched here.
func CleanupExpired(ctx context.Context, store CleanupStore, now time.Time) (*CleanupResult, error) {
	result := &CleanupResult{}
	var err error

	result.SessionsDeleted, err = store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	result.ResetTokensDeleted, err = store.DeleteExpiredResetTokens(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired password reset tokens: %w", err)
	}

	result.SessionStateDeleted, err = store.DeleteExpiredSessionState(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired session state: %w", err)
	}

	return result, nil
}
