package library

import (
	"slices"
	"strings"
)

// Queries returns the seed query texts for a signature: one per search
// string and target language, of the form `"<string>" <qualifiers>`.
// Duplicate texts are dropped; unknown languages are skipped.
func Queries(sig Signature) []string {
	var out []string
	for _, s := range sig.SearchStrings() {
		for _, name := range sig.Languages {
			lang := Find(name)
			if lang == nil {
				continue
			}
			q := `"` + s + `" ` + strings.Join(lang.Qualifiers(), " ")
			if !slices.Contains(out, q) {
				out = append(out, q)
			}
		}
	}
	return out
}
