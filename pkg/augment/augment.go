// Package augment enriches repositories with metadata from three independent
// GitHub sources: repository info, contributor totals and the first commit.
//
// Every source runs on its own credential and contributes once to a
// [barrier.Barrier]; the merged row is emitted when all three have reported.
// A not-found response is a complete contribution that sets repo_not_found.
// A source that fails after retries does not contribute, and its repository
// is reported as unresolved when the run ends.
package augment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ghdisco/pkg/barrier"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/integrations/github"
	"github.com/matzehuels/ghdisco/pkg/observability"
)

// Kind names augmentation rows in sinks and hooks.
const Kind = "augment"

// DefaultWorkers is the number of concurrent source fetches.
const DefaultWorkers = 4

// Columns is the output field order.
var Columns = []string{
	"repo_name", "size_bytes", "forked_from", "last_commit_ts", "created_at", "language",
	"number_of_contributors", "number_of_commits", "first_commit_sha", "repo_not_found",
}

// API is the subset of the GitHub client used here.
type API interface {
	RepoInfo(ctx context.Context, cred credentials.Credential, repo string) (*github.RepoInfo, error)
	ContributorTotals(ctx context.Context, cred credentials.Credential, repo string) (*github.Totals, error)
	FirstCommit(ctx context.Context, cred credentials.Credential, repo string) (string, error)
}

// Options configures an [Augmenter].
type Options struct {
	Workers int
	Logger  *log.Logger
}

// Stats summarizes a run.
type Stats struct {
	Repos      int      `json:"repos"`
	Records    int      `json:"records"`
	NotFound   int      `json:"not_found"`
	Failures   int      `json:"failures"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Augmenter runs the augmentation pipeline.
type Augmenter struct {
	api    API
	alloc  *credentials.Allocator
	opts   Options
	logger *log.Logger
}

// New returns an Augmenter.
func New(api API, alloc *credentials.Allocator, opts Options) *Augmenter {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Augmenter{api: api, alloc: alloc, opts: opts, logger: opts.Logger}
}

type source int

const (
	sourceInfo source = iota
	sourceContributors
	sourceFirstCommit
	numSources
)

func (s source) String() string {
	return [...]string{"info", "contributors", "first_commit"}[s]
}

type job struct {
	repo string
	src  source
	cred credentials.Credential
}

type result struct {
	job    job
	fields barrier.Record
	err    error
}

// Run augments repos and calls emit once per completed repository, from a
// single goroutine. Duplicate repository names are augmented once.
func (a *Augmenter) Run(ctx context.Context, repos []string, emit func(barrier.Record) error) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats Stats
	b := barrier.New()
	var queue []job
	for _, repo := range repos {
		if _, _, ok := b.Progress(repo); ok {
			continue
		}
		b.Register(repo, int(numSources))
		stats.Repos++
		for s := range numSources {
			queue = append(queue, job{repo: repo, src: s, cred: a.alloc.Allocate(true)})
		}
	}

	jobs := make(chan job)
	results := make(chan result)
	var wg sync.WaitGroup
	for range a.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fields, err := a.fetch(ctx, j)
				select {
				case results <- result{job: j, fields: fields, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	err := func() error {
		inflight := 0
		for len(queue) > 0 || inflight > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			var out chan job
			var next job
			if len(queue) > 0 {
				out, next = jobs, queue[0]
			}
			select {
			case out <- next:
				queue = queue[1:]
				inflight++
			case r := <-results:
				inflight--
				if r.err != nil {
					stats.Failures++
					a.logger.Warn("source failed", "repo", r.job.repo, "source", r.job.src, "err", r.err)
					continue
				}
				if r.fields["repo_not_found"] == true {
					a.logger.Debug("not found", "repo", r.job.repo, "source", r.job.src)
				}
				rec, ok := b.Contribute(r.job.repo, r.fields)
				if !ok {
					continue
				}
				if rec["repo_not_found"] == true {
					stats.NotFound++
				}
				stats.Records++
				observability.Record().OnRecord(ctx, Kind)
				if err := emit(rec); err != nil {
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

	stats.Unresolved = b.Pending()
	for _, repo := range stats.Unresolved {
		observability.Record().OnUnresolved(ctx, Kind, repo)
		if err == nil {
			a.logger.Warn("unresolved", "repo", repo)
		}
	}
	return stats, err
}

// fetch runs one source. Not-found is a successful contribution.
func (a *Augmenter) fetch(ctx context.Context, j job) (barrier.Record, error) {
	fields := barrier.Record{"repo_name": j.repo}
	var err error
	switch j.src {
	case sourceInfo:
		var info *github.RepoInfo
		if info, err = a.api.RepoInfo(ctx, j.cred, j.repo); err == nil {
			fields["size_bytes"] = info.SizeKB * 1024
			fields["forked_from"] = info.ForkedFrom
			fields["last_commit_ts"] = info.PushedAt
			fields["created_at"] = info.CreatedAt
			fields["language"] = info.Language
		}
	case sourceContributors:
		var totals *github.Totals
		if totals, err = a.api.ContributorTotals(ctx, j.cred, j.repo); err == nil {
			fields["number_of_contributors"] = totals.Contributors
			fields["number_of_commits"] = totals.Commits
		}
	case sourceFirstCommit:
		var sha string
		if sha, err = a.api.FirstCommit(ctx, j.cred, j.repo); err == nil {
			fields["first_commit_sha"] = sha
		}
	}
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		fields["repo_not_found"] = true
		return fields, nil
	case err != nil:
		return nil, fmt.Errorf("%s %s: %w", j.src, j.repo, err)
	}
	return fields, nil
}

// ReadRepos reads the repo_name column of a CSV file. Invalid names are
// skipped and returned separately.
func ReadRepos(r io.Reader) (repos, invalid []string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, nil, ierrors.Wrap(ierrors.ErrCodeInvalidInput, err, "read csv header")
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "repo_name") {
			col = i
		}
	}
	if col < 0 {
		return nil, nil, ierrors.New(ierrors.ErrCodeInvalidInput, "csv has no repo_name column")
	}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return repos, invalid, nil
		}
		if err != nil {
			return nil, nil, ierrors.Wrap(ierrors.ErrCodeInvalidInput, err, "read csv")
		}
		if col >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[col])
		if name == "" {
			continue
		}
		if ierrors.ValidateRepoName(name) != nil {
			invalid = append(invalid, name)
			continue
		}
		repos = append(repos, name)
	}
}
