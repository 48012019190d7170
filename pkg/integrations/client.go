package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/ghdisco/pkg/cache"
	"github.com/matzehuels/ghdisco/pkg/observability"
)

// Client provides shared caching for API clients.
type Client struct {
	http  *http.Client
	cache cache.Cache
	ttl   time.Duration
}

// NewClient creates a Client. A nil cache disables caching.
func NewClient(httpClient *http.Client, c cache.Cache, ttl time.Duration) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPOptions{})
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{http: httpClient, cache: c, ttl: ttl}
}

// HTTP returns the underlying HTTP client.
func (c *Client) HTTP() *http.Client { return c.http }

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
// fetch runs once: retries belong to the HTTP transport.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	kind := keyKind(key)
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, kind)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, kind)
	}
	if err := fetch(); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, kind, len(data))
		}
	}
	return nil
}

// keyKind returns the namespace part of a "gh:<kind>:<hash>" key.
func keyKind(key string) string {
	if i := strings.LastIndexByte(key, ':'); i > 0 {
		key = key[:i]
	}
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
