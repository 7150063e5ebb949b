package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow adapts ulule/limiter's fixed-window Redis store to Allower.
type FixedWindow struct {
	Store limiter.Store

	mu    sync.Mutex
	rates map[string]*limiter.Limiter
}

// NewFixedWindow builds a FixedWindow backed by Redis.
func NewFixedWindow(client *redis.Client, prefix string) (*FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: create limiter store: %w", err)
	}
	return &FixedWindow{Store: store}, nil
}

func (f *FixedWindow) limiterFor(window time.Duration, max int) *limiter.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rates == nil {
		f.rates = map[string]*limiter.Limiter{}
	}
	id := fmt.Sprintf("%d/%s", max, window)
	l, ok := f.rates[id]
	if !ok {
		l = limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
		f.rates[id] = l
	}
	return l
}

func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f == nil || f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := f.limiterFor(window, max).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
