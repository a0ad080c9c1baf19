package service

import (
	"context"
	"testing"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *CatalogService {
	return NewCatalogServiceFromProducts([]domain.Product{
		{
			ID:         "1",
			Title:      "Linen Kurta",
			Price:      decimal.RequireFromString("1499.00"),
			Sizes:      []string{"S", "M", "L"},
			Colors:     []string{"white", "sand"},
			Thumbnails: []string{"/images/kurta-1.jpg"},
		},
		{
			ID:              "4",
			Title:           "Canvas Tote",
			Price:           decimal.RequireFromString("499.00"),
			BackgroundImage: "/images/tote.jpg",
		},
	})
}

func newTestCartService() (*CartService, *memorySessionStore) {
	store := newMemorySessionStore()
	return NewCartService(store, newTestCatalog(), discardLogger()), store
}

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("prices come from the catalog", func(t *testing.T) {
		svc, _ := newTestCartService()

		cart, err := svc.AddItem(ctx, testSession, "1", "M", "white", 2)
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)

		line := cart.Lines[0]
		assert.Equal(t, "Linen Kurta", line.Title)
		assert.True(t, decimal.RequireFromString("1499").Equal(line.UnitPrice))
		assert.Equal(t, "/images/kurta-1.jpg", line.DisplayImage)
		assert.True(t, decimal.RequireFromString("2998").Equal(cart.Total()))
	})

	t.Run("same variant merges quantity", func(t *testing.T) {
		svc, _ := newTestCartService()

		_, err := svc.AddItem(ctx, testSession, "1", "M", "white", 1)
		require.NoError(t, err)
		cart, err := svc.AddItem(ctx, testSession, "1", "M", "white", 2)
		require.NoError(t, err)

		require.Len(t, cart.Lines, 1)
		assert.Equal(t, 3, cart.Lines[0].Quantity)
	})

	t.Run("different variant is a new line", func(t *testing.T) {
		svc, _ := newTestCartService()

		_, err := svc.AddItem(ctx, testSession, "1", "M", "white", 1)
		require.NoError(t, err)
		cart, err := svc.AddItem(ctx, testSession, "1", "L", "white", 1)
		require.NoError(t, err)
		assert.Len(t, cart.Lines, 2)
	})

	t.Run("product without options", func(t *testing.T) {
		svc, _ := newTestCartService()

		cart, err := svc.AddItem(ctx, testSession, "4", "", "", 1)
		require.NoError(t, err)
		assert.Equal(t, "/images/tote.jpg", cart.Lines[0].DisplayImage)
	})

	tests := []struct {
		name       string
		productRef string
		size       string
		color      string
		quantity   int
		wantErr    error
		wantField  string
	}{
		{"zero quantity", "1", "M", "white", 0, domain.ErrInvalidQuantity, ""},
		{"unknown product", "99", "", "", 1, domain.ErrProductNotFound, ""},
		{"size not offered", "1", "XXL", "white", 1, nil, "size"},
		{"missing size", "1", "", "white", 1, nil, "size"},
		{"color not offered", "1", "M", "black", 1, nil, "color"},
		{"option on plain product", "4", "M", "", 1, nil, "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestCartService()

			_, err := svc.AddItem(ctx, testSession, tt.productRef, tt.size, tt.color, tt.quantity)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantField != "" {
				assert.Contains(t, domain.GetValidationFields(err), tt.wantField)
			}
			assert.Zero(t, store.cartLen(testSession))
		})
	}
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestCartService()

	_, err := svc.AddItem(ctx, testSession, "1", "M", "white", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, testSession, "4", "", "", 1)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(ctx, testSession, "1", "M", "white", 5)
	require.NoError(t, err)
	assert.Equal(t, 6, cart.ItemCount())

	_, err = svc.UpdateQuantity(ctx, testSession, "1", "S", "white", 2)
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)

	_, err = svc.UpdateQuantity(ctx, testSession, "1", "M", "white", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	cart, err = svc.UpdateQuantity(ctx, testSession, "1", "M", "white", 0)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "4", cart.Lines[0].ProductRef)

	cart, err = svc.RemoveItem(ctx, testSession, "4", "", "")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = svc.RemoveItem(ctx, testSession, "4", "", "")
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)

	_, err = svc.AddItem(ctx, testSession, "4", "", "", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, testSession))
	assert.Zero(t, store.cartLen(testSession))
}

func TestCartService_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCartService()

	_, err := svc.AddItem(ctx, "sess-a", "4", "", "", 1)
	require.NoError(t, err)

	cart, err := svc.GetCart(ctx, "sess-b")
	require.NoError(t, err)
	assert.NotNil(t, cart.Lines)
	assert.Empty(t, cart.Lines)

	_, err = svc.GetCart(ctx, "")
	assert.ErrorIs(t, err, domain.ErrSessionRequired)
}

func TestCatalogService(t *testing.T) {
	ctx := context.Background()

	svc, err := NewCatalogService()
	require.NoError(t, err)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	p, err := svc.GetProduct(ctx, products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, products[0].Title, p.Title)

	_, err = svc.GetProduct(ctx, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
