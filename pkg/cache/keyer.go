package cache

import "strings"

// Keyer builds cache keys for the GitHub resources ghdisco fetches.
type Keyer interface {
	// RepoKey identifies a repository resource, e.g. ("info", "owner/name").
	RepoKey(kind, repo string) string

	// BlobKey identifies a git blob by repository and SHA.
	BlobKey(repo, sha string) string

	// LoginKey identifies a per-login resource inside a repository.
	LoginKey(repo, login string) string
}

// DefaultKeyer produces stable keys of the form "gh:<kind>:<hash>".
type DefaultKeyer struct {
	prefix string
}

// NewDefaultKeyer returns a keyer with the "gh" namespace.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{prefix: "gh"} }

// NewScopedKeyer returns a keyer whose keys start with scope, so runs
// against different API hosts do not share entries.
func NewScopedKeyer(scope string) Keyer {
	return &DefaultKeyer{prefix: "gh:" + strings.TrimSuffix(scope, ":")}
}

func (k *DefaultKeyer) RepoKey(kind, repo string) string {
	return hashKey(k.prefix+":"+kind, strings.ToLower(repo))
}

func (k *DefaultKeyer) BlobKey(repo, sha string) string {
	return hashKey(k.prefix+":blob", strings.ToLower(repo), sha)
}

func (k *DefaultKeyer) LoginKey(repo, login string) string {
	return hashKey(k.prefix+":login", strings.ToLower(repo), strings.ToLower(login))
}

var _ Keyer = (*DefaultKeyer)(nil)
