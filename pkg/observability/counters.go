package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Counters is an in-process implementation of every hook interface that
// keeps running totals. It is safe for concurrent use.
type Counters struct {
	started time.Time

	pages      atomic.Int64
	splits     atomic.Int64
	pruned     atomic.Int64
	matches    atomic.Int64
	exhausted  atomic.Int64
	incomplete atomic.Int64
	failures   atomic.Int64

	records    atomic.Int64
	unresolved atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	requests  atomic.Int64
	retries   atomic.Int64
	httpError atomic.Int64
}

// NewCounters returns zeroed counters stamped with the current time.
func NewCounters() *Counters {
	return &Counters{started: time.Now()}
}

// Register installs c as the search, record, cache and HTTP hooks.
func Register(c *Counters) {
	SetSearchHooks(c)
	SetRecordHooks(c)
	SetCacheHooks(c)
	SetHTTPHooks(c)
}

// Snapshot is a point-in-time copy of [Counters].
type Snapshot struct {
	Elapsed     time.Duration `json:"elapsed_ns"`
	Pages       int64         `json:"pages"`
	Splits      int64         `json:"splits"`
	Pruned      int64         `json:"pruned"`
	Matches     int64         `json:"matches"`
	Exhausted   int64         `json:"exhausted"`
	Incomplete  int64         `json:"incomplete"`
	Failures    int64         `json:"failures"`
	Records     int64         `json:"records"`
	Unresolved  int64         `json:"unresolved"`
	CacheHits   int64         `json:"cache_hits"`
	CacheMisses int64         `json:"cache_misses"`
	Requests    int64         `json:"requests"`
	Retries     int64         `json:"retries"`
	HTTPErrors  int64         `json:"http_errors"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Elapsed:     time.Since(c.started),
		Pages:       c.pages.Load(),
		Splits:      c.splits.Load(),
		Pruned:      c.pruned.Load(),
		Matches:     c.matches.Load(),
		Exhausted:   c.exhausted.Load(),
		Incomplete:  c.incomplete.Load(),
		Failures:    c.failures.Load(),
		Records:     c.records.Load(),
		Unresolved:  c.unresolved.Load(),
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
		Requests:    c.requests.Load(),
		Retries:     c.retries.Load(),
		HTTPErrors:  c.httpError.Load(),
	}
}

func (c *Counters) OnPage(context.Context, string, int, int, int) { c.pages.Add(1) }
func (c *Counters) OnSplit(context.Context, string, string)       { c.splits.Add(1) }
func (c *Counters) OnPrune(context.Context, string)               { c.pruned.Add(1) }
func (c *Counters) OnMatch(context.Context, string)               { c.matches.Add(1) }
func (c *Counters) OnExhausted(context.Context, string)           { c.exhausted.Add(1) }
func (c *Counters) OnIncomplete(context.Context, string)          { c.incomplete.Add(1) }
func (c *Counters) OnFailure(context.Context, string, error)      { c.failures.Add(1) }

func (c *Counters) OnRecord(context.Context, string)             { c.records.Add(1) }
func (c *Counters) OnUnresolved(context.Context, string, string) { c.unresolved.Add(1) }

func (c *Counters) OnCacheHit(context.Context, string)      { c.cacheHits.Add(1) }
func (c *Counters) OnCacheMiss(context.Context, string)     { c.cacheMisses.Add(1) }
func (c *Counters) OnCacheSet(context.Context, string, int) {}

func (c *Counters) OnRequest(context.Context, string, string, string) { c.requests.Add(1) }
func (c *Counters) OnResponse(context.Context, string, string, string, int, time.Duration) {
}
func (c *Counters) OnRetry(context.Context, string, string, string, int, int) { c.retries.Add(1) }
func (c *Counters) OnError(context.Context, string, string, string, error)    { c.httpError.Add(1) }

var (
	_ SearchHooks = (*Counters)(nil)
	_ RecordHooks = (*Counters)(nil)
	_ CacheHooks  = (*Counters)(nil)
	_ HTTPHooks   = (*Counters)(nil)
)
