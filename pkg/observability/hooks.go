// Package observability provides hooks for metrics, progress reporting, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about search partitioning, record emission, cache operations,
// and API calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so library packages never
// import a metrics backend. [Counters] is the built-in implementation used by
// the CLI progress view and status endpoint.
//
// # Usage
//
// Register hooks at application startup:
//
//	counters := observability.NewCounters()
//	observability.Register(counters)
//
// Libraries call hooks to emit events:
//
//	observability.Search().OnSplit(ctx, "size", "0..1000000")
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Search Hooks
// =============================================================================

// SearchHooks receives events from the query partition planner.
type SearchHooks interface {
	// OnPage records a fetched result page.
	OnPage(ctx context.Context, query string, page, items, total int)

	// OnSplit records a partition decision ("size", "order" or "lexical").
	OnSplit(ctx context.Context, kind, rangeKey string)

	// OnPrune records a lexical child skipped by the exclude cache.
	OnPrune(ctx context.Context, query string)

	// OnMatch records a newly emitted match.
	OnMatch(ctx context.Context, library string)

	// OnExhausted records a partition that cannot be refined further.
	OnExhausted(ctx context.Context, query string)

	// OnIncomplete records a page flagged incomplete by the API.
	OnIncomplete(ctx context.Context, query string)

	// OnFailure records a lineage abandoned after a failed request.
	OnFailure(ctx context.Context, query string, err error)
}

// =============================================================================
// Record Hooks
// =============================================================================

// RecordHooks receives events from the augmentation and contributor jobs.
type RecordHooks interface {
	// OnRecord records an emitted output row of the given kind.
	OnRecord(ctx context.Context, kind string)

	// OnUnresolved records an entity that never completed.
	OnUnresolved(ctx context.Context, kind, id string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnRetry records a retried request and the status that caused it (0 for network errors).
	OnRetry(ctx context.Context, method, host, path string, attempt, statusCode int)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSearchHooks is a no-op implementation of SearchHooks.
type NoopSearchHooks struct{}

func (NoopSearchHooks) OnPage(context.Context, string, int, int, int) {}
func (NoopSearchHooks) OnSplit(context.Context, string, string)       {}
func (NoopSearchHooks) OnPrune(context.Context, string)               {}
func (NoopSearchHooks) OnMatch(context.Context, string)               {}
func (NoopSearchHooks) OnExhausted(context.Context, string)           {}
func (NoopSearchHooks) OnIncomplete(context.Context, string)          {}
func (NoopSearchHooks) OnFailure(context.Context, string, error)      {}

// NoopRecordHooks is a no-op implementation of RecordHooks.
type NoopRecordHooks struct{}

func (NoopRecordHooks) OnRecord(context.Context, string)             {}
func (NoopRecordHooks) OnUnresolved(context.Context, string, string) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnRetry(context.Context, string, string, string, int, int)              {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	searchHooks SearchHooks = NoopSearchHooks{}
	recordHooks RecordHooks = NoopRecordHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetSearchHooks registers custom search hooks.
// This should be called once at application startup before any search runs.
func SetSearchHooks(h SearchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		searchHooks = h
	}
}

// SetRecordHooks registers custom record hooks.
func SetRecordHooks(h RecordHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		recordHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Search returns the registered search hooks.
func Search() SearchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return searchHooks
}

// Record returns the registered record hooks.
func Record() RecordHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return recordHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	searchHooks = NoopSearchHooks{}
	recordHooks = NoopRecordHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
