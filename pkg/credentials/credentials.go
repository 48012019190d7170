// Package credentials holds the pool of GitHub API tokens and the allocator
// that spreads query lineages across them.
//
// Each token carries its own upstream rate-limit budget. A lineage (a first
// request and its pagination follow-ups) keeps one token for its lifetime;
// new lineages rotate round-robin through the pool.
//
//	pool, err := credentials.Load(credentials.LoadOptions{EnvPrefix: "GITHUB_TOKEN_"})
//	alloc := credentials.NewAllocator(pool)
//	cred := alloc.Allocate(true)  // new lineage
//	same := alloc.Allocate(false) // follow-up page
package credentials

import (
	"errors"
	"sync"
)

// ErrNoCredentials is returned when a pool would be empty.
var ErrNoCredentials = errors.New("no credentials configured")

// Credential is one API token.
type Credential struct {
	Name  string // where the token came from, e.g. "GITHUB_TOKEN_3"
	Token string
}

// String returns the credential name without the secret.
func (c Credential) String() string {
	if c.Name != "" {
		return c.Name
	}
	return "token"
}

// Pool is an immutable, non-empty list of credentials.
type Pool struct {
	creds []Credential
}

// NewPool returns a pool over creds. Duplicate tokens are dropped.
func NewPool(creds []Credential) (*Pool, error) {
	seen := make(map[string]bool, len(creds))
	var out []Credential
	for _, c := range creds {
		if c.Token == "" || seen[c.Token] {
			continue
		}
		seen[c.Token] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{creds: out}, nil
}

// Size returns the number of credentials.
func (p *Pool) Size() int { return len(p.creds) }

// At returns the credential at index i modulo the pool size.
func (p *Pool) At(i int) Credential { return p.creds[i%len(p.creds)] }

// Names returns the credential names in pool order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.creds))
	for i, c := range p.creds {
		names[i] = c.String()
	}
	return names
}

// Allocator hands out credentials round-robin. It is safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	pool   *Pool
	cursor int
}

// NewAllocator returns an allocator over pool. It panics if pool is nil or
// empty, since every search lineage needs a credential.
func NewAllocator(pool *Pool) *Allocator {
	if pool == nil || len(pool.creds) == 0 {
		panic("credentials: allocator needs a non-empty pool")
	}
	return &Allocator{pool: pool}
}

// Allocate returns a credential. When newLineage is true the cursor advances
// first and the credential at the new position is returned; otherwise the
// credential at the current position is returned unchanged.
func (a *Allocator) Allocate(newLineage bool) Credential {
	a.mu.Lock()
	defer a.mu.Unlock()
	if newLineage {
		a.cursor = (a.cursor + 1) % len(a.pool.creds)
	}
	return a.pool.creds[a.cursor]
}

// Pool returns the underlying pool.
func (a *Allocator) Pool() *Pool { return a.pool }
