// Package cache provides byte-level response caching for GitHub API calls.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: shared cache for several concurrent runs
//   - [NullCache]: disables caching
//
// Keys are produced by a [Keyer] so every backend sees the same namespace
// layout.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads under string keys.
//
// Implementations must be safe for concurrent use. A ttl of zero means the
// entry does not expire.
type Cache interface {
	// Get returns the cached data and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key for ttl.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop all of their entries.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Options selects and configures a backend for [Open].
type Options struct {
	Backend   string
	Dir       string
	RedisAddr string
}

// Open builds the cache backend named in opts.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileCache(opts.Dir)
	case BackendRedis:
		return NewRedisCache(ctx, opts.RedisAddr)
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, ErrUnknownBackend
	}
}
