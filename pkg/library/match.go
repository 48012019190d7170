package library

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Verdict reports which template matched a file.
type Verdict struct {
	Language string
	Template Template
	Regexp   string
}

// Matcher tests file content against a signature's language templates.
// It is safe for concurrent use.
type Matcher struct {
	sig   Signature
	langs []*Language

	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewMatcher returns a Matcher for sig. Unknown languages are ignored.
func NewMatcher(sig Signature) *Matcher {
	m := &Matcher{sig: sig, cache: make(map[string]*regexp.Regexp)}
	for _, name := range sig.Languages {
		if l := Find(name); l != nil {
			m.langs = append(m.langs, l)
		}
	}
	return m
}

// Match reports the first template whose path filter accepts path and whose
// content regex matches content. Placeholders are tried for every pairing of
// artifact name and import or usage string.
func (m *Matcher) Match(path string, content []byte) (*Verdict, bool) {
	tried := make(map[string]bool)
	for _, artifact := range m.sig.ArtifactNames() {
		for _, usage := range m.sig.Usages() {
			for _, lang := range m.langs {
				for _, t := range lang.Templates {
					if t.Path != "" && !m.compile(t.Path).MatchString(path) {
						continue
					}
					expr, ok := expand(t, artifact, usage)
					if !ok || tried[expr] {
						continue
					}
					tried[expr] = true
					if m.compile(expr).Match(content) {
						return &Verdict{Language: lang.Name, Template: t, Regexp: expr}, true
					}
				}
			}
		}
	}
	return nil, false
}

// compile returns the cached compiled form of expr. Table patterns and
// escaped placeholders always compile, so a failure is a defect.
func (m *Matcher) compile(expr string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()
	if re, ok := m.cache[expr]; ok {
		return re
	}
	re := regexp.MustCompile(expr)
	m.cache[expr] = re
	return re
}

// expand substitutes the template's placeholders. It reports false when a
// Maven template meets an artifact name without a group.
func expand(t Template, artifact, usage string) (string, bool) {
	pairs := []string{
		"${artifact_name}", regexp.QuoteMeta(artifact),
		"${import_or_usage}", regexp.QuoteMeta(usage),
	}
	if t.Maven {
		group, id, ok := strings.Cut(artifact, ":")
		if !ok {
			return "", false
		}
		pairs = append(pairs,
			"${group_id}", regexp.QuoteMeta(group),
			"${artifact_id}", regexp.QuoteMeta(id),
		)
	}
	expr := strings.NewReplacer(pairs...).Replace(t.Pattern)
	if t.IgnoreCase {
		expr = "(?i)" + expr
	}
	return expr, true
}

// String describes the verdict for logs.
func (v *Verdict) String() string {
	return fmt.Sprintf("%s template %q", v.Language, v.Template.Pattern)
}
