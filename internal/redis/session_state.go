// Package redis keeps per-session carts, wishlists and staged order drafts
// in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses a redis:// URL and verifies the server answers.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// SessionStateStore implements domain.CartStore, domain.DraftStore and
// domain.WishlistStore. Every write refreshes the key's TTL; abandoned
// sessions expire on their own. State saved under an identity's owner key
// lives for ownerTTL instead.
type SessionStateStore struct {
	client   *goredis.Client
	ttl      time.Duration
	ownerTTL time.Duration
}

var (
	_ domain.CartStore     = (*SessionStateStore)(nil)
	_ domain.DraftStore    = (*SessionStateStore)(nil)
	_ domain.WishlistStore = (*SessionStateStore)(nil)
)

func NewSessionStateStore(client *goredis.Client, ttl time.Duration) *SessionStateStore {
	return &SessionStateStore{client: client, ttl: ttl, ownerTTL: ttl}
}

// WithOwnerTTL sets the lifetime of state kept for signed-in identities.
func (s *SessionStateStore) WithOwnerTTL(ttl time.Duration) *SessionStateStore {
	if ttl > 0 {
		s.ownerTTL = ttl
	}
	return s
}

// stateKey namespaces session state under "session:" and identity state
// under its owner key.
func stateKey(owner, kind string) string {
	if domain.IsOwnerKey(owner) {
		return fmt.Sprintf("%s:%s", owner, kind)
	}
	return fmt.Sprintf("session:%s:%s", owner, kind)
}

func cartKey(sessionID string) string {
	return stateKey(sessionID, "cart")
}

func draftKey(sessionID string) string {
	return stateKey(sessionID, "draft")
}

func wishlistKey(owner string) string {
	return stateKey(owner, "wishlist")
}

func (s *SessionStateStore) ttlFor(owner string) time.Duration {
	if domain.IsOwnerKey(owner) {
		return s.ownerTTL
	}
	return s.ttl
}

func (s *SessionStateStore) set(ctx context.Context, owner, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttlFor(owner)).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// get returns false on a cache miss.
func (s *SessionStateStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return true, nil
}

func (s *SessionStateStore) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *SessionStateStore) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart := &domain.Cart{}
	if _, err := s.get(ctx, cartKey(sessionID), cart); err != nil {
		return nil, err
	}
	cart.SessionID = sessionID
	return cart, nil
}

func (s *SessionStateStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	return s.set(ctx, cart.SessionID, cartKey(cart.SessionID), cart)
}

func (s *SessionStateStore) ClearCart(ctx context.Context, sessionID string) error {
	return s.del(ctx, cartKey(sessionID))
}

func (s *SessionStateStore) SaveDraft(ctx context.Context, sessionID string, draft *domain.OrderDraft) error {
	return s.set(ctx, sessionID, draftKey(sessionID), draft)
}

func (s *SessionStateStore) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	var draft domain.OrderDraft
	found, err := s.get(ctx, draftKey(sessionID), &draft)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrDraftMissing
	}
	return &draft, nil
}

func (s *SessionStateStore) DeleteDraft(ctx context.Context, sessionID string) error {
	return s.del(ctx, draftKey(sessionID))
}

func (s *SessionStateStore) GetWishlist(ctx context.Context, ownerKey string) (*domain.Wishlist, error) {
	wishlist := &domain.Wishlist{}
	if _, err := s.get(ctx, wishlistKey(ownerKey), wishlist); err != nil {
		return nil, err
	}
	wishlist.OwnerKey = ownerKey
	return wishlist, nil
}

func (s *SessionStateStore) SaveWishlist(ctx context.Context, wishlist *domain.Wishlist) error {
	return s.set(ctx, wishlist.OwnerKey, wishlistKey(wishlist.OwnerKey), wishlist)
}

func (s *SessionStateStore) DeleteWishlist(ctx context.Context, ownerKey string) error {
	return s.del(ctx, wishlistKey(ownerKey))
}
