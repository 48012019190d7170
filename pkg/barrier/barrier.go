// Package barrier joins several independent fetches for one entity into a
// single record.
//
// Each entity is registered with the number of sources that will report on
// it. Every source contributes exactly once, after its own pagination has
// finished; a not-found response is a valid contribution. When the last
// source has contributed the merged record is emitted exactly once and the
// entity is forgotten.
//
//	b := barrier.New()
//	b.Register("octo/repo", 3)
//	...
//	if rec, ok := b.Contribute("octo/repo", barrier.Record{"size_bytes": 2048}); ok {
//	    sink.Write(rec)
//	}
package barrier

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Record holds merged field values.
type Record map[string]any

type entry struct {
	fields    Record
	completed int
	total     int
}

// Barrier tracks per-entity completion. It is safe for concurrent use.
type Barrier struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty barrier.
func New() *Barrier {
	return &Barrier{entries: make(map[string]*entry)}
}

// Register creates the accumulator for id expecting total contributions.
// Registering a pending id again is a no-op. It panics if total < 1.
func (b *Barrier) Register(id string, total int) {
	if total < 1 {
		panic(fmt.Sprintf("barrier: entity %q registered with %d sources", id, total))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[id]; ok {
		return
	}
	b.entries[id] = &entry{fields: Record{}, total: total}
}

// Contribute merges fields into id's record and counts one completed source.
// If that was the last source, the merged record is returned with ok set and
// the entity is released. Contributing to an unregistered or already emitted
// entity panics.
func (b *Barrier) Contribute(id string, fields Record) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.mustEntry(id)
	if e.completed == e.total {
		panic(fmt.Sprintf("barrier: entity %q received more than %d contributions", id, e.total))
	}
	maps.Copy(e.fields, fields)
	e.completed++
	return b.emitLocked(id, e)
}

// TryEmit returns the merged record if every source has contributed, and
// releases the entity. Otherwise it returns false and leaves it pending.
func (b *Barrier) TryEmit(id string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	return b.emitLocked(id, e)
}

func (b *Barrier) emitLocked(id string, e *entry) (Record, bool) {
	if e.completed < e.total {
		return nil, false
	}
	delete(b.entries, id)
	return e.fields, true
}

func (b *Barrier) mustEntry(id string) *entry {
	e, ok := b.entries[id]
	if !ok {
		panic(fmt.Sprintf("barrier: contribution to unknown or already emitted entity %q", id))
	}
	return e
}

// Progress returns completed and total sources for a pending id.
func (b *Barrier) Progress(id string) (completed, total int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return 0, 0, false
	}
	return e.completed, e.total, true
}

// Pending returns the ids that have not been emitted, sorted.
func (b *Barrier) Pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.entries))
}

// Len returns the number of pending entities.
func (b *Barrier) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
