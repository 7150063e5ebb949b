package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/common"
)

func TestFixedWindowAllowsUpToMax(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fw, err := NewFixedWindow(client, "rl")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, _, _, err := fw.Allow(ctx, "k", time.Minute, 2)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, remaining, _, err := fw.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestFixedWindowBudgetsPerUserOrIP(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fw, err := NewFixedWindow(client, "rl")
	require.NoError(t, err)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.1:1234"
	signedIn := anon.WithContext(common.WithUserID(anon.Context(), "u1"))

	ctx := context.Background()
	allowed, _, _, err := fw.Allow(ctx, UserOrIPKey(anon), time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = fw.Allow(ctx, UserOrIPKey(signedIn), time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed, "user budget is separate from the caller's address")

	allowed, _, _, err = fw.Allow(ctx, UserOrIPKey(anon), time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}
