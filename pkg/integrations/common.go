package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/httputil"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a repository or resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is returned when a credential's quota is spent.
	ErrRateLimited = errors.New("rate limited")
)

// HTTPOptions configures [NewHTTPClient].
type HTTPOptions struct {
	Timeout    time.Duration
	MinDelay   time.Duration
	Retries    int
	RetryCodes []int
	Backoff    time.Duration // initial retry backoff; transport default when zero
	UserAgent  string
}

// NewHTTPClient creates an HTTP client whose transport paces and retries
// requests as configured. Timeout bounds each attempt, not the whole retry
// sequence, so every configured retry gets to run.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = httpTimeout
	}
	return &http.Client{
		Transport: httputil.NewTransport(httputil.TransportOptions{
			MinDelay:   opts.MinDelay,
			Retries:    opts.Retries,
			RetryCodes: opts.RetryCodes,
			Backoff:    opts.Backoff,
			Timeout:    timeout,
			UserAgent:  opts.UserAgent,
		}),
	}
}

// CheckStatus maps an HTTP status code to the package's sentinel errors.
// By the time a status reaches it the transport has already retried it.
func CheckStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"http://github.com/", "https://github.com/",
	"https://www.github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes and
// trailing slashes. Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	s = strings.TrimRight(s, "/")
	return strings.TrimSuffix(s, ".git")
}

// RepoNameFromURL extracts "owner/name" from a GitHub repository URL.
// Bare "owner/name" input is returned unchanged.
func RepoNameFromURL(raw string) (string, error) {
	s := NormalizeRepoURL(raw)
	s = strings.TrimPrefix(s, "https://github.com/")
	parts := strings.Split(s, "/")
	if len(parts) > 2 {
		s = parts[0] + "/" + parts[1]
	}
	if err := ierrors.ValidateRepoName(s); err != nil {
		return "", err
	}
	return s, nil
}

// SplitRepoName splits "owner/name" into its parts.
func SplitRepoName(full string) (owner, name string, err error) {
	if err := ierrors.ValidateRepoName(full); err != nil {
		return "", "", err
	}
	owner, name, _ = strings.Cut(full, "/")
	return owner, name, nil
}
