package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/obs"
	"github.com/noah-isme/toko-rewards/internal/resilience"
)

// ErrProductNotFound is returned when the remote catalog has no such product.
var ErrProductNotFound = errors.New("catalog: product not found")

const maxBodyBytes = 1 << 20

// Doer is the outbound transport, normally a resilience.HTTPClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client reads products from the remote storefront API.
type Client struct {
	BaseURL string
	HTTP    Doer
	Cache   *Cache
	Logger  zerolog.Logger

	inflight singleflight.Group
}

// NewClient wires a Client over a resilient HTTP transport.
func NewClient(baseURL string, httpClient resilience.HTTPClient, cache *Cache, logger zerolog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Cache:   cache,
		Logger:  logger,
	}
}

// Product fetches a single product, preferring the Redis cache.
func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	if c == nil || c.HTTP == nil || c.BaseURL == "" {
		return Product{}, errors.New("catalog client not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, common.Validation("", "productId is required")
	}

	entry, hit, err := c.Cache.lookup(ctx, id)
	if err != nil {
		c.Logger.Warn().Err(err).Str("product_id", id).Msg("catalog_cache_read_failed")
	}
	if hit {
		if entry.Missing {
			obs.RecordCatalogLookup("cache", "not_found")
			return Product{}, common.NotFound("product not found")
		}
		obs.RecordCatalogLookup("cache", "hit")
		return *entry.Product, nil
	}

	// concurrent misses for one id share a single remote call
	v, err, _ := c.inflight.Do(id, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			obs.RecordCatalogLookup("remote", "not_found")
			if err := c.Cache.storeMissing(ctx, id); err != nil {
				c.Logger.Warn().Err(err).Str("product_id", id).Msg("catalog_cache_write_failed")
			}
			return Product{}, common.NotFound("product not found")
		}
		obs.RecordCatalogLookup("remote", "error")
		return Product{}, common.Upstream("catalog unavailable", err)
	}
	product := v.(Product)
	obs.RecordCatalogLookup("remote", "ok")
	if err := c.Cache.store(ctx, id, product); err != nil {
		c.Logger.Warn().Err(err).Str("product_id", id).Msg("catalog_cache_write_failed")
	}
	return product, nil
}

func (c *Client) fetch(ctx context.Context, id string) (Product, error) {
	endpoint := c.BaseURL + "/products/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Product{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Product{}, ErrProductNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		return Product{}, fmt.Errorf("catalog responded %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Product{}, fmt.Errorf("read body: %w", err)
	}
	raw, err := decodeObject(data)
	if err != nil {
		return Product{}, err
	}
	product := ProductFromRaw(raw)
	if product.ID == "" {
		product.ID = id
	}
	return product, nil
}

// decodeObject accepts either a bare product object or one wrapped in {"data": ...}.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if inner, ok := raw["data"].(map[string]any); ok {
		return inner, nil
	}
	return raw, nil
}
