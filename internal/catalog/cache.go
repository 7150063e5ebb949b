package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const minMissTTL = 5 * time.Second

// cacheEntry is what lands in Redis: a product, or a marker that the
// catalog answered 404 so repeated misses do not hit the remote API.
type cacheEntry struct {
	Product *Product `json:"product,omitempty"`
	Missing bool     `json:"missing,omitempty"`
}

// Cache keeps recently fetched products in Redis. Misses are kept for a
// tenth of the TTL, never less than five seconds.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a cache; a nil client or non-positive TTL disables it.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func productKey(id string) string {
	return "catalog:product:" + id
}

func (c *Cache) lookup(ctx context.Context, id string) (cacheEntry, bool, error) {
	if !c.enabled() {
		return cacheEntry{}, false, nil
	}
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cacheEntry{}, false, nil
	}
	if err != nil {
		return cacheEntry{}, false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return cacheEntry{}, false, err
	}
	return entry, entry.Missing || entry.Product != nil, nil
}

func (c *Cache) store(ctx context.Context, id string, p Product) error {
	return c.put(ctx, id, cacheEntry{Product: &p}, c.ttl)
}

func (c *Cache) storeMissing(ctx context.Context, id string) error {
	return c.put(ctx, id, cacheEntry{Missing: true}, max(c.ttl/10, minMissTTL))
}

func (c *Cache) put(ctx context.Context, id string, entry cacheEntry, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(id), data, ttl).Err()
}

// Forget drops whatever is cached for id.
func (c *Cache) Forget(ctx context.Context, id string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, productKey(id)).Err()
}
