package service

import (
	"context"
	"testing"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShopperStateFixture() (*ShopperStateService, *memorySessionStore) {
	store := newMemorySessionStore()
	return NewShopperStateService(store, store, store, discardLogger()), store
}

func TestShopperStateService_SignIn(t *testing.T) {
	ctx := context.Background()
	owner := domain.OwnerKey(shopper.ID)

	t.Run("restores the saved cart and merges the guest cart", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveCart(ctx, &domain.Cart{SessionID: owner, Lines: []domain.CartLine{kurtaLine(1)}}))

		tote := domain.CartLine{ProductRef: "4", Title: "Canvas Tote", UnitPrice: kurtaLine(1).UnitPrice, Quantity: 1}
		require.NoError(t, store.SaveCart(ctx, &domain.Cart{SessionID: "guest", Lines: []domain.CartLine{kurtaLine(2), tote}}))

		cart, err := svc.SignIn(ctx, "guest", "fresh", shopper.ID)
		require.NoError(t, err)
		assert.Equal(t, "fresh", cart.SessionID)
		require.Len(t, cart.Lines, 2)
		assert.Equal(t, 3, cart.Lines[0].Quantity)

		assert.Equal(t, 2, store.cartLen("fresh"))
		assert.Zero(t, store.cartLen("guest"))
		assert.Zero(t, store.cartLen(owner))
	})

	t.Run("drops the old session's draft", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveDraft(ctx, "guest", &domain.OrderDraft{Lines: []domain.CartLine{kurtaLine(1)}, Address: validAddress()}))

		_, err := svc.SignIn(ctx, "guest", "fresh", shopper.ID)
		require.NoError(t, err)

		assert.False(t, store.hasDraft("guest"))
		assert.False(t, store.hasDraft("fresh"))
	})

	t.Run("folds the guest wishlist into the identity's", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveWishlist(ctx, &domain.Wishlist{OwnerKey: owner, Items: []domain.WishlistItem{{ProductRef: "1"}}}))
		require.NoError(t, store.SaveWishlist(ctx, &domain.Wishlist{OwnerKey: "guest", Items: []domain.WishlistItem{{ProductRef: "1"}, {ProductRef: "4"}}}))

		_, err := svc.SignIn(ctx, "guest", "fresh", shopper.ID)
		require.NoError(t, err)

		saved, err := store.GetWishlist(ctx, owner)
		require.NoError(t, err)
		require.Len(t, saved.Items, 2)
		assert.True(t, saved.Contains("4"))

		guest, err := store.GetWishlist(ctx, "guest")
		require.NoError(t, err)
		assert.True(t, guest.IsEmpty())
	})

	t.Run("nothing saved gives an empty cart", func(t *testing.T) {
		svc, _ := newShopperStateFixture()

		cart, err := svc.SignIn(ctx, "", "fresh", shopper.ID)
		require.NoError(t, err)
		assert.NotNil(t, cart.Lines)
		assert.Empty(t, cart.Lines)
	})
}

func TestShopperStateService_SignOut(t *testing.T) {
	ctx := context.Background()
	owner := domain.OwnerKey(shopper.ID)

	t.Run("parks the cart under the identity and clears the session", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveCart(ctx, &domain.Cart{SessionID: testSession, Lines: []domain.CartLine{kurtaLine(2)}}))
		require.NoError(t, store.SaveDraft(ctx, testSession, &domain.OrderDraft{Lines: []domain.CartLine{kurtaLine(2)}, Address: validAddress()}))

		require.NoError(t, svc.SignOut(ctx, testSession, shopper.ID))

		assert.Zero(t, store.cartLen(testSession))
		assert.False(t, store.hasDraft(testSession))
		assert.Equal(t, 1, store.cartLen(owner))
	})

	t.Run("next sign-in gets the parked cart back", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveCart(ctx, &domain.Cart{SessionID: testSession, Lines: []domain.CartLine{kurtaLine(2)}}))
		require.NoError(t, svc.SignOut(ctx, testSession, shopper.ID))

		// Another shopper on the same browser starts from nothing.
		cart, err := svc.SignIn(ctx, "shared-browser", "other-session", other.ID)
		require.NoError(t, err)
		assert.Empty(t, cart.Lines)

		cart, err = svc.SignIn(ctx, "", "later", shopper.ID)
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, 2, cart.Lines[0].Quantity)
	})

	t.Run("anonymous sign-out is a no-op", func(t *testing.T) {
		svc, store := newShopperStateFixture()
		require.NoError(t, store.SaveCart(ctx, &domain.Cart{SessionID: testSession, Lines: []domain.CartLine{kurtaLine(1)}}))

		require.NoError(t, svc.SignOut(ctx, testSession, ""))
		assert.Equal(t, 1, store.cartLen(testSession))
	})
}

func TestMergeLines(t *testing.T) {
	base := []domain.CartLine{kurtaLine(1)}
	large := kurtaLine(1)
	large.Size = "L"

	out := mergeLines(base, []domain.CartLine{kurtaLine(2), large})
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].Quantity)
	assert.Equal(t, 1, base[0].Quantity)
}
