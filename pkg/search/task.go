package search

import (
	"fmt"
	"strings"
)

// Sort orders accepted by the code search endpoint.
const (
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// Splitter bounds.
const (
	SplitterAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	MaxSplitterLength = 4
)

// Task is one search query over an inclusive file-size range.
type Task struct {
	Query    string // seed query text, e.g. `"launchdarkly" filename:Podfile`
	SizeFrom int
	SizeTo   int
	Sort     string // sort field, "indexed"
	Order    string // OrderDesc or OrderAsc
	Splitter string // lexical term appended to Query
	Page     int
	PageSize int

	// Stop forbids further splits of this lineage.
	Stop bool
}

// Degenerate reports whether the size range holds a single size.
func (t Task) Degenerate() bool { return t.SizeFrom == t.SizeTo }

// RangeKey identifies the size range, "from..to".
func (t Task) RangeKey() string { return fmt.Sprintf("%d..%d", t.SizeFrom, t.SizeTo) }

// Text returns the full query string sent to the API.
func (t Task) Text() string {
	var b strings.Builder
	b.WriteString(t.Query)
	if t.Splitter != "" {
		b.WriteByte(' ')
		b.WriteString(t.Splitter)
	}
	fmt.Fprintf(&b, " size:%s", t.RangeKey())
	return b.String()
}

// String describes the task for logs.
func (t Task) String() string {
	return fmt.Sprintf("%s [%s page %d]", t.Text(), t.Order, t.Page)
}

// first returns a copy reset to page 1.
func (t Task) first() Task {
	t.Page = 1
	return t
}

// Bisect splits the range at from + (to-from)/2 into [from, mid] and
// [mid+1, to]. It must not be called on a degenerate task.
func (t Task) Bisect() (left, right Task) {
	mid := t.SizeFrom + (t.SizeTo-t.SizeFrom)/2
	left, right = t.first(), t.first()
	left.SizeTo = mid
	right.SizeFrom = mid + 1
	return left, right
}

// FlipOrder returns the task in the opposite sort order with Stop set.
func (t Task) FlipOrder() Task {
	c := t.first()
	if t.Order == OrderAsc {
		c.Order = OrderDesc
	} else {
		c.Order = OrderAsc
	}
	c.Stop = true
	return c
}

// Extend returns the task with r appended to its splitter.
func (t Task) Extend(r byte) Task {
	c := t.first()
	c.Splitter = t.Splitter + string(r)
	return c
}

// Envelope is one page of search results.
type Envelope struct {
	Total      int
	Incomplete bool
	Items      []Match
}

// Match is one file reported by code search.
type Match struct {
	Library  string `json:"library"`
	RepoName string `json:"repo_name"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	SHA      string `json:"sha"`
	Fork     bool   `json:"forked"`
}

// Key is the identity used for de-duplication.
func (m Match) Key() string { return m.RepoName + "_" + m.Name + "_" + m.SHA }
