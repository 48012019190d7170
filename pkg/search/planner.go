package search

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/observability"
)

// Defaults for code search.
const (
	DefaultCap      = 1000
	DefaultPageSize = 100
	DefaultWorkers  = 4
	DefaultSort     = "indexed"
	DefaultSizeTo   = 1000000
)

// ErrStopped is returned by an emit function to end a run early without error.
var ErrStopped = errors.New("search stopped")

// Searcher fetches one page of code search results with the given credential.
type Searcher interface {
	SearchCode(ctx context.Context, cred credentials.Credential, t Task) (*Envelope, error)
}

// Options configures a [Planner].
type Options struct {
	Cap      int // results retrievable per lineage
	PageSize int // standard page size
	Workers  int // concurrent requests
	Logger   *log.Logger
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.Cap <= 0 {
		o.Cap = DefaultCap
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Stats summarizes one library run.
type Stats struct {
	Requests     int `json:"requests"`
	Matches      int `json:"matches"`
	Skipped      int `json:"skipped"`
	Duplicates   int `json:"duplicates"`
	Bisections   int `json:"bisections"`
	OrderFlips   int `json:"order_flips"`
	LexicalSplit int `json:"lexical_splits"`
	Pruned       int `json:"pruned"`
	Exhausted    int `json:"exhausted"`
	Incomplete   int `json:"incomplete"`
	Failures     int `json:"failures"`
}

// Planner drives paging and partitioning of search tasks.
type Planner struct {
	searcher Searcher
	alloc    *credentials.Allocator
	opts     Options
}

// NewPlanner returns a planner using alloc to assign lineage credentials.
func NewPlanner(s Searcher, alloc *credentials.Allocator, opts Options) *Planner {
	return &Planner{searcher: s, alloc: alloc, opts: opts.WithDefaults()}
}

// Seed returns a first-page task for query with the planner's page size.
func (p *Planner) Seed(query string, sizeFrom, sizeTo int) Task {
	return Task{
		Query:    query,
		SizeFrom: sizeFrom,
		SizeTo:   sizeTo,
		Sort:     DefaultSort,
		Order:    OrderDesc,
		Page:     1,
		PageSize: p.opts.PageSize,
	}
}

// Run enumerates all matches of seeds for one library and calls emit once
// per distinct match. emit is called from a single goroutine. Returning
// [ErrStopped] from emit ends the run cleanly; any other error aborts it.
func (p *Planner) Run(ctx context.Context, library string, seeds []Task, emit func(Match) error) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &crawler{
		ctx:      ctx,
		p:        p,
		library:  library,
		emit:     emit,
		ledger:   NewLedger(),
		excludes: make(map[string]*ExcludeCache),
		jobs:     make(chan *lineage),
		results:  make(chan result),
		logger:   p.opts.Logger.With("library", library),
	}
	for range p.opts.Workers {
		c.wg.Add(1)
		go c.worker()
	}
	for _, s := range seeds {
		if s.Page < 1 {
			s.Page = 1
		}
		if s.PageSize <= 0 {
			s.PageSize = p.opts.PageSize
		}
		c.spawn(s)
	}

	err := c.collect()
	cancel()
	close(c.jobs)
	c.wg.Wait()

	if errors.Is(err, ErrStopped) {
		err = nil
	}
	return c.stats, err
}

// All is an iterator form of [Planner.Run]. A final non-nil error, if any,
// is yielded with a zero Match.
func (p *Planner) All(ctx context.Context, library string, seeds []Task) iter.Seq2[Match, error] {
	return func(yield func(Match, error) bool) {
		_, err := p.Run(ctx, library, seeds, func(m Match) error {
			if !yield(m, nil) {
				return ErrStopped
			}
			return nil
		})
		if err != nil {
			yield(Match{}, err)
		}
	}
}

// lineage is a task and its pagination follow-ups, pinned to one credential.
type lineage struct {
	task    Task
	cred    credentials.Credential
	exclude *ExcludeCache
	seen    map[string]struct{}
	dup     bool
}

type result struct {
	l   *lineage
	env *Envelope
	err error
}

type crawler struct {
	ctx     context.Context
	p       *Planner
	library string
	emit    func(Match) error
	logger  *log.Logger

	ledger   *Ledger
	excludes map[string]*ExcludeCache

	jobs    chan *lineage
	results chan result
	wg      sync.WaitGroup

	// owned by the collect goroutine
	queue    []*lineage
	inflight int
	stats    Stats
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for l := range c.jobs {
		env, err := c.p.searcher.SearchCode(c.ctx, l.cred, l.task)
		select {
		case c.results <- result{l: l, env: env, err: err}:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *crawler) collect() error {
	for len(c.queue) > 0 || c.inflight > 0 {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		var out chan *lineage
		var next *lineage
		if len(c.queue) > 0 {
			out, next = c.jobs, c.queue[0]
		}
		select {
		case out <- next:
			c.queue = c.queue[1:]
			c.inflight++
			c.stats.Requests++
		case r := <-c.results:
			c.inflight--
			if err := c.handle(r); err != nil {
				return err
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
	return nil
}

// spawn starts a new lineage for t with a fresh credential.
func (c *crawler) spawn(t Task) {
	ex, ok := c.excludes[t.Query]
	if !ok {
		ex = NewExcludeCache()
		c.excludes[t.Query] = ex
	}
	if t.Degenerate() && ex.IsExcluded(t.SizeFrom, t.Splitter) {
		c.prune(t)
		return
	}
	c.queue = append(c.queue, &lineage{
		task:    t,
		cred:    c.p.alloc.Allocate(true),
		exclude: ex,
		seen:    make(map[string]struct{}),
	})
}

// follow queues the next page of l on the same credential.
func (c *crawler) follow(l *lineage) {
	l.task.Page++
	c.queue = append(c.queue, l)
}

func (c *crawler) prune(t Task) {
	c.stats.Pruned++
	observability.Search().OnPrune(c.ctx, t.Text())
	c.logger.Debug("already covered", "query", t.Text())
}

func (c *crawler) handle(r result) error {
	l, t := r.l, r.l.task
	if r.err != nil {
		c.stats.Failures++
		observability.Search().OnFailure(c.ctx, t.Text(), r.err)
		c.logger.Warn("search failed", "query", t.String(), "credential", l.cred, "err", r.err)
		return nil
	}

	env := r.env
	limit := c.p.opts.Cap
	observability.Search().OnPage(c.ctx, t.Text(), t.Page, len(env.Items), env.Total)
	if env.Incomplete {
		c.stats.Incomplete++
		observability.Search().OnIncomplete(c.ctx, t.Text())
		c.logger.Warn("incomplete results", "query", t.String())
	}

	degenerate := t.Degenerate()
	if degenerate && t.Page == 1 {
		if l.exclude.IsExcluded(t.SizeFrom, t.Splitter) {
			c.prune(t)
			return nil
		}
		if env.Total <= limit {
			l.exclude.MarkExcluded(t.SizeFrom, t.Splitter)
		}
		if env.Total == 0 {
			return nil
		}
	}

	enumerable := env.Total <= limit || degenerate
	if enumerable {
		if err := c.process(l, env); err != nil {
			return err
		}
	}

	if degenerate && t.Page == 1 && len(env.Items) > 0 {
		c.split(l, env.Total, len(env.Items))
	}

	maxPages := limit / t.PageSize
	if enumerable && len(env.Items) > 0 && t.Page < maxPages && t.Page*t.PageSize < env.Total {
		c.follow(l)
		return nil
	}

	if !degenerate {
		c.split(l, env.Total, len(env.Items))
	}
	return nil
}

// process records and emits the page's new matches.
func (c *crawler) process(l *lineage, env *Envelope) error {
	t := l.task
	rangeKey := t.RangeKey()
	standard := t.PageSize == c.p.opts.PageSize
	fresh := 0

	for _, m := range env.Items {
		id := m.Key()
		if _, again := l.seen[id]; again {
			if !t.Degenerate() && standard {
				l.dup = true
				c.stats.Duplicates++
			}
			continue
		}
		l.seen[id] = struct{}{}

		if c.ledger.WasFoundAnywhere(id) {
			c.ledger.MarkFound(id, rangeKey)
			c.stats.Skipped++
			continue
		}
		c.ledger.MarkFound(id, rangeKey)

		m.Library = c.library
		fresh++
		c.stats.Matches++
		observability.Search().OnMatch(c.ctx, c.library)
		if err := c.emit(m); err != nil {
			return err
		}
	}

	c.logger.Info("page",
		"new", fresh, "items", len(env.Items), "total", env.Total,
		"page", t.Page, "range", rangeKey, "splitter", t.Splitter,
		"collected", c.ledger.Len())
	return nil
}

// split decides whether a finished or first page calls for narrower tasks.
func (c *crawler) split(l *lineage, total, items int) {
	t := l.task
	limit := c.p.opts.Cap
	if t.PageSize != c.p.opts.PageSize || t.Stop {
		return
	}
	if total <= limit && !l.dup {
		return
	}

	if !t.Degenerate() {
		if t.Page == 1 && items == 0 && total < limit {
			return
		}
		left, right := t.Bisect()
		c.stats.Bisections++
		observability.Search().OnSplit(c.ctx, "size", t.RangeKey())
		c.logger.Info("split", "kind", "size", "total", total, "duplicate", l.dup,
			"left", left.RangeKey(), "right", right.RangeKey())
		c.spawn(left)
		c.spawn(right)
		return
	}

	if total <= 2*limit {
		c.stats.OrderFlips++
		observability.Search().OnSplit(c.ctx, "order", t.RangeKey())
		c.logger.Info("split", "kind", "order", "total", total, "range", t.RangeKey())
		c.spawn(t.FlipOrder())
		return
	}

	if len(t.Splitter) >= MaxSplitterLength {
		c.stats.Exhausted++
		observability.Search().OnExhausted(c.ctx, t.Text())
		c.logger.Warn("lexical depth exhausted", "query", t.Text(), "total", total)
		return
	}

	c.stats.LexicalSplit++
	observability.Search().OnSplit(c.ctx, "lexical", t.RangeKey())
	c.logger.Info("split", "kind", "lexical", "total", total, "range", t.RangeKey(), "splitter", t.Splitter)
	for i := range len(SplitterAlphabet) {
		c.spawn(t.Extend(SplitterAlphabet[i]))
	}
}
