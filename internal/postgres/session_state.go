package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	kindCart     = "cart"
	kindDraft    = "draft"
	kindWishlist = "wishlist"
)

// SessionStateStore keeps per-session carts, wishlists and staged drafts in
// the session_state table. Rows carry an expiry; expired rows read as absent
// and are purged by the cleanup job. Rows keyed by an identity's owner key
// expire after ownerTTL.
type SessionStateStore struct {
	pool     *pgxpool.Pool
	ttl      time.Duration
	ownerTTL time.Duration
	now      func() time.Time
}

var (
	_ domain.CartStore     = (*SessionStateStore)(nil)
	_ domain.DraftStore    = (*SessionStateStore)(nil)
	_ domain.WishlistStore = (*SessionStateStore)(nil)
)

func NewSessionStateStore(pool *pgxpool.Pool, ttl time.Duration) *SessionStateStore {
	return &SessionStateStore{pool: pool, ttl: ttl, ownerTTL: ttl, now: time.Now}
}

// WithOwnerTTL sets the lifetime of state kept for signed-in identities.
func (s *SessionStateStore) WithOwnerTTL(ttl time.Duration) *SessionStateStore {
	if ttl > 0 {
		s.ownerTTL = ttl
	}
	return s
}

func (s *SessionStateStore) ttlFor(owner string) time.Duration {
	if domain.IsOwnerKey(owner) {
		return s.ownerTTL
	}
	return s.ttl
}

func (s *SessionStateStore) put(ctx context.Context, sessionID, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	now := s.now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO session_state (session_id, kind, payload, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, kind)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
	`, sessionID, kind, payload, now, now.Add(s.ttlFor(sessionID)))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}

// get returns false when no live row exists.
func (s *SessionStateStore) get(ctx context.Context, sessionID, kind string, v any) (bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM session_state
		WHERE session_id = $1 AND kind = $2 AND expires_at > $3
	`, sessionID, kind, s.now().UTC()).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select %s: %w", kind, err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return true, nil
}

func (s *SessionStateStore) del(ctx context.Context, sessionID, kind string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_state WHERE session_id = $1 AND kind = $2`, sessionID, kind); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

// --- CartStore ---

func (s *SessionStateStore) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart := &domain.Cart{SessionID: sessionID}
	if _, err := s.get(ctx, sessionID, kindCart, cart); err != nil {
		return nil, err
	}
	cart.SessionID = sessionID
	return cart, nil
}

func (s *SessionStateStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	return s.put(ctx, cart.SessionID, kindCart, cart)
}

func (s *SessionStateStore) ClearCart(ctx context.Context, sessionID string) error {
	return s.del(ctx, sessionID, kindCart)
}

// --- DraftStore ---

func (s *SessionStateStore) SaveDraft(ctx context.Context, sessionID string, draft *domain.OrderDraft) error {
	return s.put(ctx, sessionID, kindDraft, draft)
}

func (s *SessionStateStore) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	var draft domain.OrderDraft
	found, err := s.get(ctx, sessionID, kindDraft, &draft)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrDraftMissing
	}
	return &draft, nil
}

func (s *SessionStateStore) DeleteDraft(ctx context.Context, sessionID string) error {
	return s.del(ctx, sessionID, kindDraft)
}

// --- WishlistStore ---

func (s *SessionStateStore) GetWishlist(ctx context.Context, ownerKey string) (*domain.Wishlist, error) {
	wishlist := &domain.Wishlist{}
	if _, err := s.get(ctx, ownerKey, kindWishlist, wishlist); err != nil {
		return nil, err
	}
	wishlist.OwnerKey = ownerKey
	return wishlist, nil
}

func (s *SessionStateStore) SaveWishlist(ctx context.Context, wishlist *domain.Wishlist) error {
	return s.put(ctx, wishlist.OwnerKey, kindWishlist, wishlist)
}

func (s *SessionStateStore) DeleteWishlist(ctx context.Context, ownerKey string) error {
	return s.del(ctx, ownerKey, kindWishlist)
}
