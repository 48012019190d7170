package library

import (
	"context"
	"sync"

	"github.com/matzehuels/ghdisco/pkg/credentials"
)

// ToggledKind names verified rows in sinks.
const ToggledKind = "toggled"

// ToggledColumns is the field order of verified rows.
var ToggledColumns = []string{"repo_name", "path", "library", "library_language"}

// BlobFetcher returns raw file content by blob SHA.
type BlobFetcher interface {
	Blob(ctx context.Context, cred credentials.Credential, repo, sha string) ([]byte, error)
}

// Verifier confirms search matches by testing file content, and reports each
// repository as toggled at most once.
type Verifier struct {
	fetch   BlobFetcher
	alloc   *credentials.Allocator
	sig     Signature
	matcher *Matcher

	mu      sync.Mutex
	toggled map[string]bool
}

// NewVerifier returns a Verifier for one library.
func NewVerifier(fetch BlobFetcher, alloc *credentials.Allocator, sig Signature) *Verifier {
	return &Verifier{
		fetch:   fetch,
		alloc:   alloc,
		sig:     sig,
		matcher: NewMatcher(sig),
		toggled: make(map[string]bool),
	}
}

// Verify fetches the blob and matches it. It returns a toggled row the first
// time a repository matches, and nil for later matches of the same
// repository and for files that do not match.
func (v *Verifier) Verify(ctx context.Context, repo, path, sha string) (map[string]any, error) {
	if v.isToggled(repo) {
		return nil, nil
	}
	content, err := v.fetch.Blob(ctx, v.alloc.Allocate(true), repo, sha)
	if err != nil {
		return nil, err
	}
	if _, ok := v.matcher.Match(path, content); !ok {
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.toggled[repo] {
		return nil, nil
	}
	v.toggled[repo] = true
	return map[string]any{
		"repo_name":        repo,
		"path":             path,
		"library":          v.sig.Name,
		"library_language": v.sig.LanguageList(),
	}, nil
}

// Toggled returns the number of toggled repositories.
func (v *Verifier) Toggled() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.toggled)
}

func (v *Verifier) isToggled(repo string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toggled[repo]
}

// queueDepth is the per-worker buffer of a Queue.
const queueDepth = 64

// Candidate is a search match awaiting content verification.
type Candidate struct {
	Repo string
	Path string
	SHA  string
}

// Queue verifies candidates on background workers, so whoever feeds it
// only waits when the buffer is full. Rows are passed to emit one at a time.
// Verification errors go to fail; when fail is nil or returns an error, or
// emit returns an error, the queue stops and reports that error.
type Queue struct {
	v    *Verifier
	in   chan Candidate
	emit func(row map[string]any) error
	fail func(c Candidate, err error) error

	wg     sync.WaitGroup
	emitMu sync.Mutex

	once sync.Once
	done chan struct{}
	err  error
}

// Start launches workers goroutines verifying candidates added to the
// returned Queue. Call Wait once no more candidates will be added.
func (v *Verifier) Start(ctx context.Context, workers int, emit func(row map[string]any) error, fail func(c Candidate, err error) error) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		v:    v,
		in:   make(chan Candidate, workers*queueDepth),
		emit: emit,
		fail: fail,
		done: make(chan struct{}),
	}
	q.wg.Add(workers)
	for range workers {
		go q.work(ctx)
	}
	return q
}

// Add enqueues c. It returns the error that stopped the queue, if any.
func (q *Queue) Add(ctx context.Context, c Candidate) error {
	select {
	case <-q.done:
		return q.err
	default:
	}
	select {
	case q.in <- c:
		return nil
	case <-q.done:
		return q.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the queue to new candidates, waits for the pending ones and
// returns the error that stopped the queue, if any.
func (q *Queue) Wait() error {
	close(q.in)
	q.wg.Wait()
	select {
	case <-q.done:
		return q.err
	default:
		return nil
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for c := range q.in {
		if q.stopped() {
			continue
		}
		row, err := q.v.Verify(ctx, c.Repo, c.Path, c.SHA)
		if err != nil {
			if q.fail != nil {
				err = q.fail(c, err)
			}
			if err != nil {
				q.stop(err)
			}
			continue
		}
		if row == nil {
			continue
		}
		q.emitMu.Lock()
		err = q.emit(row)
		q.emitMu.Unlock()
		if err != nil {
			q.stop(err)
		}
	}
}

func (q *Queue) stop(err error) {
	q.once.Do(func() {
		q.err = err
		close(q.done)
	})
}

func (q *Queue) stopped() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
