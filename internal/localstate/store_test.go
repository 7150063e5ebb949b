package localstate_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/localstate"
)

func newStore(t *testing.T, maxOrders int) (*localstate.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &localstate.Store{R: client, MaxOrders: maxOrders}, mr
}

func TestWalletMirrorRoundTrip(t *testing.T) {
	store, mr := newStore(t, 0)
	ctx := context.Background()

	_, found, err := store.LoadWallet(ctx, "u1")
	require.NoError(t, err)
	require.False(t, found)

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveWallet(ctx, "u1", localstate.Wallet{GameBalance: "3.500", LoyaltyPoints: 120, UpdatedAt: stamp}))

	w, found, err := store.LoadWallet(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "3.500", w.GameBalance)
	require.EqualValues(t, 120, w.LoyaltyPoints)
	require.True(t, stamp.Equal(w.UpdatedAt))

	got, err := mr.Get("localstate:u1:gameWallet")
	require.NoError(t, err)
	require.Equal(t, "3.500", got)
}

func TestOrdersNewestFirstAndBounded(t *testing.T) {
	store, _ := newStore(t, 3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.AppendOrder(ctx, "u1", localstate.OrderSummary{
			ID:        fmt.Sprintf("o%d", i),
			Reference: fmt.Sprintf("ORD-00000%d", i),
			Status:    "processing",
			Total:     "2.000",
		}))
	}
	orders, err := store.Orders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, "o5", orders[0].ID)
	require.Equal(t, "o3", orders[2].ID)
}

func TestFavourites(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()

	ids, err := store.Favourites(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, store.SaveFavourites(ctx, "u1", []string{"p1", "p2"}))
	ids, err = store.Favourites(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, ids)
}

func TestUnconfiguredStore(t *testing.T) {
	var store *localstate.Store
	require.Error(t, store.SaveWallet(context.Background(), "u1", localstate.Wallet{}))
}
