package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ghdisco/pkg/credentials"
)

// doc is one indexed file in a fake corpus.
type doc struct {
	id   int
	size int
	word string
}

func (d doc) match() Match {
	return Match{
		RepoName: fmt.Sprintf("owner/repo%d", d.id),
		Path:     "src/file.go",
		Name:     "file.go",
		SHA:      fmt.Sprintf("%040d", d.id),
	}
}

// corpus answers searches the way the API does: every matching file counts
// toward the total but only the first cap results in sort order can be paged.
type corpus struct {
	docs []doc
	cap  int

	mu    sync.Mutex
	calls []call
	fail  func(Task) error
}

type call struct {
	task Task
	cred string
}

func (c *corpus) SearchCode(ctx context.Context, cred credentials.Credential, t Task) (*Envelope, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call{task: t, cred: cred.Token})
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		if err := fail(t); err != nil {
			return nil, err
		}
	}

	var hits []doc
	for _, d := range c.docs {
		if d.size < t.SizeFrom || d.size > t.SizeTo {
			continue
		}
		if t.Splitter != "" && !strings.HasPrefix(d.word, t.Splitter) {
			continue
		}
		hits = append(hits, d)
	}
	sort.Slice(hits, func(i, j int) bool {
		if t.Order == OrderAsc {
			return hits[i].id < hits[j].id
		}
		return hits[i].id > hits[j].id
	})

	env := &Envelope{Total: len(hits)}
	start := (t.Page - 1) * t.PageSize
	end := min(start+t.PageSize, len(hits), c.cap)
	for i := start; i < end; i++ {
		env.Items = append(env.Items, hits[i].match())
	}
	return env, nil
}

func (c *corpus) requests(pred func(Task) bool) []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []call
	for _, cl := range c.calls {
		if pred(cl.task) {
			out = append(out, cl)
		}
	}
	return out
}

// scripted answers each task from a function, for exact scenario control.
type scripted struct {
	mu    sync.Mutex
	calls []Task
	fn    func(Task) *Envelope
}

func (s *scripted) SearchCode(ctx context.Context, cred credentials.Credential, t Task) (*Envelope, error) {
	s.mu.Lock()
	s.calls = append(s.calls, t)
	s.mu.Unlock()
	return s.fn(t), nil
}

// pageOf returns the page of t from a result list of total distinct items.
func pageOf(prefix string, t Task, total int) *Envelope {
	env := &Envelope{Total: total}
	start := (t.Page - 1) * t.PageSize
	end := min(start+t.PageSize, total, DefaultCap)
	for i := start; i < end; i++ {
		env.Items = append(env.Items, Match{RepoName: prefix, Name: "f", SHA: fmt.Sprint(i)})
	}
	return env
}

func newTestPlanner(t *testing.T, s Searcher, workers int) *Planner {
	t.Helper()
	pool, err := credentials.NewPool([]credentials.Credential{
		{Name: "t0", Token: "t0"}, {Name: "t1", Token: "t1"}, {Name: "t2", Token: "t2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewPlanner(s, credentials.NewAllocator(pool), Options{
		Workers: workers,
		Logger:  log.New(io.Discard),
	})
}

type collector struct {
	matches []Match
	keys    map[string]int
}

func (c *collector) emit(m Match) error {
	if c.keys == nil {
		c.keys = make(map[string]int)
	}
	c.matches = append(c.matches, m)
	c.keys[m.Key()]++
	return nil
}

func (c *collector) assertUnique(t *testing.T) {
	t.Helper()
	for k, n := range c.keys {
		if n > 1 {
			t.Errorf("%s emitted %d times", k, n)
		}
	}
}

func spread(n, from, to int) []doc {
	docs := make([]doc, n)
	for i := range docs {
		docs[i] = doc{id: i, size: from + i*(to-from)/max(n, 1)}
	}
	return docs
}

func TestPlannerNoSplitUnderCap(t *testing.T) {
	c := &corpus{docs: spread(250, 0, 1000000), cap: DefaultCap}
	p := newTestPlanner(t, c, 4)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed(`"lib"`, 0, 1000000)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.matches) != 250 {
		t.Errorf("emitted %d, want 250", len(got.matches))
	}
	got.assertUnique(t)
	if stats.Bisections+stats.OrderFlips+stats.LexicalSplit != 0 {
		t.Errorf("unexpected split: %+v", stats)
	}
	if stats.Requests != 3 {
		t.Errorf("requests = %d, want 3 pages", stats.Requests)
	}
	for _, m := range got.matches {
		if m.Library != "lib" {
			t.Fatalf("match library = %q", m.Library)
		}
	}
}

func TestPlannerBisectionScenario(t *testing.T) {
	totals := map[string]int{
		"0..1000":   2500,
		"0..500":    600,
		"501..1000": 1100,
		"501..750":  500,
		"751..1000": 600,
	}
	s := &scripted{fn: func(t Task) *Envelope {
		return pageOf(t.RangeKey(), t, totals[t.RangeKey()])
	}}
	p := newTestPlanner(t, s, 2)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 1000)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Bisections != 2 {
		t.Errorf("bisections = %d, want 2", stats.Bisections)
	}
	if len(got.matches) != 600+500+600 {
		t.Errorf("emitted %d, want 1700", len(got.matches))
	}
	got.assertUnique(t)

	pages := map[string]int{}
	for _, c := range s.calls {
		pages[c.RangeKey()]++
	}
	want := map[string]int{"0..1000": 1, "0..500": 6, "501..1000": 1, "501..750": 5, "751..1000": 6}
	for k, n := range want {
		if pages[k] != n {
			t.Errorf("%s requested %d pages, want %d", k, pages[k], n)
		}
	}
}

func TestPlannerBisectionRecoversAll(t *testing.T) {
	c := &corpus{docs: spread(4321, 0, 1000000), cap: DefaultCap}
	p := newTestPlanner(t, c, 4)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 1000000)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.matches) != 4321 {
		t.Errorf("emitted %d, want 4321", len(got.matches))
	}
	got.assertUnique(t)
	if stats.Bisections == 0 {
		t.Error("expected bisections")
	}

	// Bisected children partition their parent.
	for _, cl := range c.requests(func(t Task) bool { return t.Page == 1 }) {
		if cl.task.SizeFrom > cl.task.SizeTo {
			t.Errorf("empty range %s", cl.task.RangeKey())
		}
	}
}

func TestPlannerOrderFlip(t *testing.T) {
	docs := make([]doc, 1500)
	for i := range docs {
		docs[i] = doc{id: i, size: 50000}
	}
	c := &corpus{docs: docs, cap: DefaultCap}
	p := newTestPlanner(t, c, 3)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 50000, 50000)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}

	if stats.OrderFlips != 1 {
		t.Errorf("order flips = %d, want 1", stats.OrderFlips)
	}
	if stats.Bisections != 0 || stats.LexicalSplit != 0 {
		t.Errorf("flipped child must not split further: %+v", stats)
	}
	asc := c.requests(func(t Task) bool { return t.Order == OrderAsc })
	if len(asc) != 10 {
		t.Errorf("asc pages = %d, want 10", len(asc))
	}
	for _, cl := range asc {
		if !cl.task.Stop {
			t.Error("flipped lineage must carry the stop marker")
		}
	}
	if len(got.matches) != 1500 {
		t.Errorf("emitted %d, want 1500", len(got.matches))
	}
	got.assertUnique(t)
}

func TestPlannerLexicalSplit(t *testing.T) {
	docs := make([]doc, 5000)
	for i := range docs {
		docs[i] = doc{id: i, size: 7, word: string(SplitterAlphabet[i%len(SplitterAlphabet)]) + "x"}
	}
	c := &corpus{docs: docs, cap: DefaultCap}
	p := newTestPlanner(t, c, 4)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 7, 7)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}

	if stats.LexicalSplit != 1 {
		t.Errorf("lexical splits = %d, want 1", stats.LexicalSplit)
	}
	if stats.Pruned != 0 {
		t.Errorf("pruned = %d, want 0 on first split", stats.Pruned)
	}
	children := c.requests(func(t Task) bool { return len(t.Splitter) == 1 && t.Page == 1 })
	if len(children) != 36 {
		t.Errorf("lexical children = %d, want 36", len(children))
	}
	if len(got.matches) != 5000 {
		t.Errorf("emitted %d, want 5000", len(got.matches))
	}
	got.assertUnique(t)
}

func TestPlannerPrunesAndExhausts(t *testing.T) {
	var docs []doc
	for i := range 300 {
		docs = append(docs, doc{id: i, size: 9, word: "a"})
	}
	for i := 300; i < 2800; i++ {
		docs = append(docs, doc{id: i, size: 9, word: "bbbb"})
	}
	c := &corpus{docs: docs, cap: DefaultCap}
	p := newTestPlanner(t, c, 1)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 9, 9)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}

	if len(c.requests(func(t Task) bool { return t.Splitter == "ba" })) != 0 {
		t.Error(`"ba" contains the covered "a" and must not be requested`)
	}
	if stats.Pruned == 0 {
		t.Error("expected pruned candidates")
	}
	if stats.Exhausted != 1 {
		t.Errorf("exhausted = %d, want 1", stats.Exhausted)
	}
	if len(c.requests(func(t Task) bool { return len(t.Splitter) > MaxSplitterLength })) != 0 {
		t.Error("splitters must not exceed the length bound")
	}
	if len(got.matches) != 1300 {
		t.Errorf("emitted %d, want 1300", len(got.matches))
	}
	got.assertUnique(t)
}

func TestPlannerDuplicateTriggersBisection(t *testing.T) {
	s := &scripted{fn: func(t Task) *Envelope {
		switch t.RangeKey() {
		case "0..100":
			env := &Envelope{Total: 150}
			start := 0
			if t.Page == 2 {
				start = 50 // re-delivers items from page 1
			}
			for i := start; i < start+100 && (t.Page == 1 || i < 100); i++ {
				env.Items = append(env.Items, Match{RepoName: "r", Name: "f", SHA: fmt.Sprint(i)})
			}
			return env
		default:
			return pageOf(t.RangeKey(), t, 75)
		}
	}}
	p := newTestPlanner(t, s, 1)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 100)}, got.emit)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Duplicates != 50 {
		t.Errorf("duplicates = %d, want 50", stats.Duplicates)
	}
	if stats.Bisections != 1 {
		t.Errorf("bisections = %d, want 1", stats.Bisections)
	}
	if len(got.matches) != 100+75+75 {
		t.Errorf("emitted %d, want 250", len(got.matches))
	}
	got.assertUnique(t)
}

func TestPlannerDedupAcrossSeeds(t *testing.T) {
	c := &corpus{docs: spread(120, 0, 1000), cap: DefaultCap}
	p := newTestPlanner(t, c, 4)

	seeds := []Task{p.Seed(`"a"`, 0, 1000), p.Seed(`"b"`, 0, 1000)}
	var got collector
	stats, err := p.Run(context.Background(), "lib", seeds, got.emit)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.matches) != 120 {
		t.Errorf("emitted %d, want 120", len(got.matches))
	}
	got.assertUnique(t)
	if stats.Skipped != 120 {
		t.Errorf("skipped = %d, want 120", stats.Skipped)
	}
	if stats.Bisections != 0 {
		t.Error("sightings from another seed are not a truncation signal")
	}
}

func TestPlannerCredentialPinning(t *testing.T) {
	c := &corpus{docs: spread(2500, 0, 1000000), cap: DefaultCap}
	p := newTestPlanner(t, c, 4)

	var got collector
	if _, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 1000000)}, got.emit); err != nil {
		t.Fatal(err)
	}

	type lineageKey struct {
		rangeKey, order, splitter string
	}
	creds := map[lineageKey]map[string]bool{}
	for _, cl := range c.calls {
		k := lineageKey{cl.task.RangeKey(), cl.task.Order, cl.task.Splitter}
		if creds[k] == nil {
			creds[k] = map[string]bool{}
		}
		creds[k][cl.cred] = true
	}
	used := map[string]bool{}
	for k, set := range creds {
		if len(set) != 1 {
			t.Errorf("lineage %v used %d credentials", k, len(set))
		}
		for c := range set {
			used[c] = true
		}
	}
	if len(used) < 2 {
		t.Errorf("lineages should rotate credentials, used %v", used)
	}
}

func TestPlannerFailureEndsLineageOnly(t *testing.T) {
	c := &corpus{docs: spread(2500, 0, 1000), cap: DefaultCap}
	c.fail = func(t Task) error {
		if t.SizeFrom == 0 && t.SizeTo == 500 {
			return errors.New("502 after retries")
		}
		return nil
	}
	p := newTestPlanner(t, c, 2)

	var got collector
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 1000)}, got.emit)
	if err != nil {
		t.Fatalf("a failed lineage must not abort the run: %v", err)
	}
	if stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
	if len(got.matches) == 0 {
		t.Error("sibling lineage should still emit")
	}
}

func TestPlannerIncompleteIsCounted(t *testing.T) {
	s := &scripted{fn: func(t Task) *Envelope {
		env := pageOf("r", t, 10)
		env.Incomplete = true
		return env
	}}
	p := newTestPlanner(t, s, 1)
	stats, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 10)}, func(Match) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if stats.Incomplete != 1 || stats.Bisections != 0 {
		t.Errorf("incomplete results should be logged, not split: %+v", stats)
	}
}

func TestPlannerEmitErrorAborts(t *testing.T) {
	c := &corpus{docs: spread(500, 0, 1000), cap: DefaultCap}
	p := newTestPlanner(t, c, 2)

	boom := errors.New("sink full")
	n := 0
	_, err := p.Run(context.Background(), "lib", []Task{p.Seed("q", 0, 1000)}, func(Match) error {
		n++
		if n == 10 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestPlannerContextCancel(t *testing.T) {
	c := &corpus{docs: spread(500, 0, 1000), cap: DefaultCap}
	p := newTestPlanner(t, c, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, "lib", []Task{p.Seed("q", 0, 1000)}, func(Match) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPlannerAllIterator(t *testing.T) {
	c := &corpus{docs: spread(300, 0, 1000), cap: DefaultCap}
	p := newTestPlanner(t, c, 2)

	n := 0
	for m, err := range p.All(context.Background(), "lib", []Task{p.Seed("q", 0, 1000)}) {
		if err != nil {
			t.Fatal(err)
		}
		if m.RepoName == "" {
			t.Fatal("empty match")
		}
		n++
		if n == 42 {
			break
		}
	}
	if n != 42 {
		t.Errorf("iterated %d, want 42", n)
	}
}
