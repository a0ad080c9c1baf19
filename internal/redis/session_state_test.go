package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukerupert/hlin/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*SessionStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSessionStateStore(client, time.Hour), mr
}

func TestGetCart_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	cart, err := store.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", cart.SessionID)
	assert.True(t, cart.IsEmpty())
}

func TestSaveCart_RoundTripAndTTL(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	cart := &domain.Cart{
		SessionID: "sess-2",
		Lines: []domain.CartLine{
			{ProductRef: "1", UnitPrice: decimal.RequireFromString("199.99"), Quantity: 2, Size: "M"},
		},
	}
	require.NoError(t, store.SaveCart(ctx, cart))

	assert.True(t, mr.Exists("session:sess-2:cart"))
	assert.Equal(t, time.Hour, mr.TTL("session:sess-2:cart"))

	got, err := store.GetCart(ctx, "sess-2")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, decimal.RequireFromString("399.98").Equal(got.Total()))

	require.NoError(t, store.ClearCart(ctx, "sess-2"))
	assert.False(t, mr.Exists("session:sess-2:cart"))
}

func TestCartExpires(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCart(ctx, &domain.Cart{
		SessionID: "sess-3",
		Lines:     []domain.CartLine{{ProductRef: "1", UnitPrice: decimal.NewFromInt(1), Quantity: 1}},
	}))

	mr.FastForward(2 * time.Hour)

	cart, err := store.GetCart(ctx, "sess-3")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestDraft(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetDraft(ctx, "sess-4")
	assert.ErrorIs(t, err, domain.ErrDraftMissing)

	first := &domain.OrderDraft{Total: decimal.RequireFromString("10.00"), StagedAt: time.Now().UTC()}
	second := &domain.OrderDraft{Total: decimal.RequireFromString("20.00"), StagedAt: time.Now().UTC()}
	require.NoError(t, store.SaveDraft(ctx, "sess-4", first))
	require.NoError(t, store.SaveDraft(ctx, "sess-4", second))

	draft, err := store.GetDraft(ctx, "sess-4")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20").Equal(draft.Total))

	require.NoError(t, store.DeleteDraft(ctx, "sess-4"))
	_, err = store.GetDraft(ctx, "sess-4")
	assert.ErrorIs(t, err, domain.ErrDraftMissing)

	require.NoError(t, store.SaveDraft(ctx, "sess-4", first))
	mr.FastForward(2 * time.Hour)
	_, err = store.GetDraft(ctx, "sess-4")
	assert.ErrorIs(t, err, domain.ErrDraftMissing)
}

func TestGetDraft_CorruptPayload(t *testing.T) {
	store, mr := setupTestStore(t)
	require.NoError(t, mr.Set("session:sess-5:draft", "{not json"))

	_, err := store.GetDraft(context.Background(), "sess-5")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDraftMissing)
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := setupTestStore(t)
	mr.Close()

	_, err := store.GetCart(context.Background(), "sess-6")
	assert.Error(t, err)
}

func TestWishlist_SessionAndOwnerKeys(t *testing.T) {
	store, mr := setupTestStore(t)
	store.WithOwnerTTL(30 * 24 * time.Hour)
	ctx := context.Background()

	empty, err := store.GetWishlist(ctx, "sess-7")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "sess-7", empty.OwnerKey)

	item := domain.WishlistItem{ProductRef: "2", Title: "Cotton Shirt", UnitPrice: decimal.RequireFromString("500")}
	require.NoError(t, store.SaveWishlist(ctx, &domain.Wishlist{OwnerKey: "sess-7", Items: []domain.WishlistItem{item}}))
	assert.Equal(t, time.Hour, mr.TTL("session:sess-7:wishlist"))

	owner := domain.OwnerKey("u-1")
	require.NoError(t, store.SaveWishlist(ctx, &domain.Wishlist{OwnerKey: owner, Items: []domain.WishlistItem{item}}))
	assert.True(t, mr.Exists("user:u-1:wishlist"))
	assert.Equal(t, 30*24*time.Hour, mr.TTL("user:u-1:wishlist"))

	got, err := store.GetWishlist(ctx, owner)
	require.NoError(t, err)
	assert.True(t, got.Contains("2"))

	require.NoError(t, store.DeleteWishlist(ctx, owner))
	assert.False(t, mr.Exists("user:u-1:wishlist"))
}

func TestSaveCart_OwnerKey(t *testing.T) {
	store, mr := setupTestStore(t)
	store.WithOwnerTTL(48 * time.Hour)

	require.NoError(t, store.SaveCart(context.Background(), &domain.Cart{
		SessionID: domain.OwnerKey("u-2"),
		Lines:     []domain.CartLine{{ProductRef: "1", UnitPrice: decimal.NewFromInt(1), Quantity: 1}},
	}))

	assert.True(t, mr.Exists("user:u-2:cart"))
	assert.Equal(t, 48*time.Hour, mr.TTL("user:u-2:cart"))
}
