// Package contributors extracts author and committer identities of the top
// contributors of repositories.
//
// For every repository the top contributors are listed first. Each login's
// latest authored commit is then fetched on its own credential, and the
// fetches are joined by a [barrier.Barrier] registered with one source per
// login, so a repository's rows are written together once every login has
// reported.
package contributors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ghdisco/pkg/barrier"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/integrations/github"
	"github.com/matzehuels/ghdisco/pkg/observability"
)

// Kind names contributor rows in sinks and hooks.
const Kind = "contributors"

// Defaults.
const (
	DefaultTop     = 5
	DefaultWorkers = 4
)

// Columns is the output field order.
var Columns = []string{"library", "repo_name", "login", "name", "email"}

// API is the subset of the GitHub client used here.
type API interface {
	TopContributors(ctx context.Context, cred credentials.Credential, repo string, n int) ([]string, error)
	LatestCommit(ctx context.Context, cred credentials.Credential, repo, login string) (*github.CommitIdentity, error)
}

// Target is a repository examined on behalf of a library.
type Target struct {
	Library string
	Repo    string
}

func (t Target) id() string { return t.Library + "\x00" + t.Repo }

// Options configures an [Extractor].
type Options struct {
	Top     int
	Workers int
	Logger  *log.Logger
}

// Stats summarizes a run.
type Stats struct {
	Repos      int      `json:"repos"`
	Logins     int      `json:"logins"`
	Rows       int      `json:"rows"`
	NotFound   int      `json:"not_found"`
	Failures   int      `json:"failures"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Extractor runs contributor extraction.
type Extractor struct {
	api   API
	alloc *credentials.Allocator
	opts  Options
}

// New returns an Extractor.
func New(api API, alloc *credentials.Allocator, opts Options) *Extractor {
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Extractor{api: api, alloc: alloc, opts: opts}
}

type job struct {
	target Target
	login  string // empty for the top-contributors listing
	cred   credentials.Credential
}

type result struct {
	job    job
	logins []string
	commit *github.CommitIdentity
	err    error
}

type run struct {
	ctx    context.Context
	x      *Extractor
	logger *log.Logger
	emit   func(barrier.Record) error

	b      *barrier.Barrier
	logins map[string][]string // target id -> logins in rank order
	queue  []job
	stats  Stats
	failed []string
}

// Run extracts identities for targets and calls emit once per output row,
// from a single goroutine. Rows of one repository are emitted together.
func (x *Extractor) Run(ctx context.Context, targets []Target, emit func(barrier.Record) error) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		ctx:    ctx,
		x:      x,
		logger: x.opts.Logger,
		emit:   emit,
		b:      barrier.New(),
		logins: make(map[string][]string),
	}
	seen := make(map[string]bool)
	for _, t := range targets {
		if seen[t.id()] {
			continue
		}
		seen[t.id()] = true
		r.stats.Repos++
		r.queue = append(r.queue, job{target: t, cred: x.alloc.Allocate(true)})
	}

	jobs := make(chan job)
	results := make(chan result)
	var wg sync.WaitGroup
	for range x.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := r.fetch(j)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	err := func() error {
		inflight := 0
		for len(r.queue) > 0 || inflight > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			var out chan job
			var next job
			if len(r.queue) > 0 {
				out, next = jobs, r.queue[0]
			}
			select {
			case out <- next:
				r.queue = r.queue[1:]
				inflight++
			case res := <-results:
				inflight--
				if err := r.handle(res); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}()
	cancel()
	close(jobs)
	wg.Wait()

	for _, id := range r.b.Pending() {
		lib, repo, _ := strings.Cut(id, "\x00")
		r.failed = append(r.failed, Target{Library: lib, Repo: repo}.String())
	}
	r.stats.Unresolved = r.failed
	for _, id := range r.stats.Unresolved {
		observability.Record().OnUnresolved(ctx, Kind, id)
	}
	return r.stats, err
}

func (r *run) fetch(j job) result {
	res := result{job: j}
	if j.login == "" {
		res.logins, res.err = r.x.api.TopContributors(r.ctx, j.cred, j.target.Repo, r.x.opts.Top)
	} else {
		res.commit, res.err = r.x.api.LatestCommit(r.ctx, j.cred, j.target.Repo, j.login)
	}
	return res
}

func (r *run) handle(res result) error {
	t := res.job.target
	logger := r.logger.With("library", t.Library, "repo", t.Repo)

	if res.job.login == "" {
		switch {
		case errors.Is(res.err, integrations.ErrNotFound):
			r.stats.NotFound++
			logger.Debug("repository not found")
			return nil
		case res.err != nil:
			r.stats.Failures++
			r.failed = append(r.failed, t.String())
			logger.Warn("list contributors failed", "err", res.err)
			return nil
		case len(res.logins) == 0:
			logger.Debug("no contributors")
			return nil
		}
		r.logins[t.id()] = res.logins
		r.b.Register(t.id(), len(res.logins))
		r.stats.Logins += len(res.logins)
		for _, login := range res.logins {
			r.queue = append(r.queue, job{target: t, login: login, cred: r.x.alloc.Allocate(true)})
		}
		return nil
	}

	if res.err != nil && !errors.Is(res.err, integrations.ErrNotFound) {
		r.stats.Failures++
		logger.Warn("latest commit failed", "login", res.job.login, "err", res.err)
		return nil
	}
	rec, ok := r.b.Contribute(t.id(), barrier.Record{res.job.login: identities(res.commit)})
	if !ok {
		return nil
	}
	for _, login := range r.logins[t.id()] {
		for _, id := range rec[login].([]identity) {
			row := barrier.Record{
				"library":   t.Library,
				"repo_name": t.Repo,
				"login":     "",
				"name":      id.Name,
				"email":     id.Email,
			}
			if id.author {
				row["login"] = login
			}
			r.stats.Rows++
			observability.Record().OnRecord(r.ctx, Kind)
			if err := r.emit(row); err != nil {
				return err
			}
		}
	}
	delete(r.logins, t.id())
	return nil
}

type identity struct {
	github.Identity
	author bool
}

// identities returns the identities of a commit worth keeping: the author,
// and the committer when it differs from the author by email. Identities
// without an email or with a GitHub no-reply address are dropped.
func identities(c *github.CommitIdentity) []identity {
	if c == nil {
		return nil
	}
	var out []identity
	if valid(c.Author) {
		out = append(out, identity{Identity: c.Author, author: true})
	}
	if valid(c.Committer) && c.Committer.Email != c.Author.Email {
		out = append(out, identity{Identity: c.Committer})
	}
	return out
}

// valid reports whether an identity carries a usable email.
func valid(id github.Identity) bool {
	email := id.Email
	if email == "" || email == "noreply@github.com" {
		return false
	}
	return !strings.HasSuffix(strings.ToLower(email), "@users.noreply.github.com")
}

func (t Target) String() string { return fmt.Sprintf("%s:%s", t.Library, t.Repo) }
