package wishlist

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

func newTestService(t *testing.T) (*Service, *cart.Service, *notify.Feed) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	kv := kvstore.NewMemory()
	keys := kvstore.NewKeyspace("test")
	carts := cart.NewService(kv, keys, log)
	feed := notify.NewFeed(log)
	return NewService(kv, keys, carts, feed, log), carts, feed
}

func TestAddToWishlist_DeduplicatesByNormalizedID(t *testing.T) {
	svc, _, feed := newTestService(t)
	ctx := context.Background()

	added, err := svc.AddToWishlist(ctx, "s1", Item{ID: "chair-blue", Name: "Chair", Price: 98.85})
	require.NoError(t, err)
	assert.Equal(t, "chair", added.ID)

	_, err = svc.AddToWishlist(ctx, "s1", Item{ID: "Chair", Name: "Chair", Price: 98.85})
	assert.ErrorIs(t, err, ErrAlreadyInWishlist)

	_, err = svc.AddToWishlist(ctx, "s1", Item{ID: "baby-dress", Name: "Baby Dress", Price: 49.5})
	require.NoError(t, err)

	count, err := svc.GetWishlistCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	in, err := svc.IsInWishlist(ctx, "s1", "chair-red")
	require.NoError(t, err)
	assert.True(t, in)

	notes := feed.Drain("s1")
	require.Len(t, notes, 3)
	assert.Equal(t, notify.TypeInfo, notes[1].Type)
}

func TestAddToWishlist_RejectsInvalidItem(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddToWishlist(context.Background(), "s1", Item{ID: " ", Name: "Nothing"})
	assert.ErrorIs(t, err, cart.ErrInvalidItem)
}

func TestRemoveFromWishlist(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"chair", "table", "lamp"} {
		_, err := svc.AddToWishlist(ctx, "s1", Item{ID: id, Name: id, Price: 10})
		require.NoError(t, err)
	}

	removed, err := svc.RemoveFromWishlist(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, "table", removed.ID)

	_, err = svc.RemoveFromWishlist(ctx, "s1", 5)
	assert.ErrorIs(t, err, ErrItemNotFound)

	resp, err := svc.GetWishlist(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "chair", resp.Items[0].ID)
	assert.Equal(t, "lamp", resp.Items[1].ID)
}

func TestMoveToCart(t *testing.T) {
	svc, carts, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddToWishlist(ctx, "s1", Item{ID: "table", Name: "Table", Price: 119.99})
	require.NoError(t, err)

	moved, err := svc.MoveToCart(ctx, "s1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, "table", moved.ID)

	store, err := carts.Open(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, store.Items(), 1)
	assert.Equal(t, 2, store.Items()[0].Quantity)

	count, err := svc.GetWishlistCount(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMoveToCart_LockedCartKeepsWishlist(t *testing.T) {
	svc, carts, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddToWishlist(ctx, "s1", Item{ID: "table", Name: "Table", Price: 119.99})
	require.NoError(t, err)

	store, err := carts.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, store.Lock(ctx))

	_, err = svc.MoveToCart(ctx, "s1", 0, 1)
	assert.ErrorIs(t, err, cart.ErrCartLocked)

	count, err := svc.GetWishlistCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, store.Items())
}

func TestGetWishlist_Summary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now.AddDate(0, 0, -10) }
	_, err := svc.AddToWishlist(ctx, "s1", Item{ID: "chair", Name: "Chair", Price: 98.85})
	require.NoError(t, err)

	svc.now = func() time.Time { return now }
	_, err = svc.AddToWishlist(ctx, "s1", Item{ID: "table", Name: "Table", Price: 119.99})
	require.NoError(t, err)

	resp, err := svc.GetWishlist(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "218.84", resp.Summary.TotalValue)
	assert.Equal(t, "109.42", resp.Summary.AveragePrice)
	assert.Equal(t, 1, resp.Summary.RecentlyAdded)
}

func TestClearWishlist(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddToWishlist(ctx, "s1", Item{ID: "chair", Name: "Chair", Price: 1})
	require.NoError(t, err)
	require.NoError(t, svc.ClearWishlist(ctx, "s1"))

	resp, err := svc.GetWishlist(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "0.00", resp.Summary.TotalValue)
}
