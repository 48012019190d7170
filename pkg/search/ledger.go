package search

import (
	"strings"
	"sync"
)

// Ledger records, per match identity, the size ranges that produced it.
// It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	found map[string]map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{found: make(map[string]map[string]struct{})}
}

// MarkFound records id under rangeKey.
func (l *Ledger) MarkFound(id, rangeKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ranges, ok := l.found[id]
	if !ok {
		ranges = make(map[string]struct{})
		l.found[id] = ranges
	}
	ranges[rangeKey] = struct{}{}
}

// WasFoundInRange reports whether id was recorded under rangeKey.
func (l *Ledger) WasFoundInRange(id, rangeKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.found[id][rangeKey]
	return ok
}

// WasFoundAnywhere reports whether id was recorded under any range.
func (l *Ledger) WasFoundAnywhere(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.found[id]
	return ok
}

// Len returns the number of distinct identities.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.found)
}

// ExcludeCache holds, per size bucket, the lexical splitters whose queries
// were fully enumerable. It is safe for concurrent use.
type ExcludeCache struct {
	mu      sync.Mutex
	buckets map[int]map[string]struct{}
}

// NewExcludeCache returns an empty cache.
func NewExcludeCache() *ExcludeCache {
	return &ExcludeCache{buckets: make(map[int]map[string]struct{})}
}

// MarkExcluded records splitter as covered in the sizeFrom bucket.
func (c *ExcludeCache) MarkExcluded(sizeFrom int, splitter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[sizeFrom]
	if !ok {
		b = make(map[string]struct{})
		c.buckets[sizeFrom] = b
	}
	b[splitter] = struct{}{}
}

// IsExcluded reports whether any excluded splitter of the sizeFrom bucket is
// a substring of candidate. The empty splitter stands for the unsplit query
// and only excludes itself.
func (c *ExcludeCache) IsExcluded(sizeFrom int, candidate string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := range c.buckets[sizeFrom] {
		if e == "" {
			if candidate == "" {
				return true
			}
			continue
		}
		if strings.Contains(candidate, e) {
			return true
		}
	}
	return false
}
