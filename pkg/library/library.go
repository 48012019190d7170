package library

import (
	"slices"
	"strings"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
)

// Signature identifies a library in source code.
type Signature struct {
	Name          string   `toml:"name"`
	Languages     []string `toml:"languages"`
	Artifacts     []string `toml:"artifacts"`      // entries may list comma-separated variants
	ImportsUsages []string `toml:"imports_usages"` // falls back to artifacts when empty
}

// ArtifactNames returns the first variant of every artifact entry.
func (s Signature) ArtifactNames() []string {
	names := make([]string, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		first, _, _ := strings.Cut(a, ",")
		if first = strings.TrimSpace(first); first != "" {
			names = append(names, first)
		}
	}
	return names
}

// SearchStrings returns the strings searched for: artifact names followed by
// import and usage strings, without duplicates.
func (s Signature) SearchStrings() []string {
	var out []string
	for _, v := range append(s.ArtifactNames(), s.ImportsUsages...) {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Usages returns the import and usage strings, or the artifact names when
// the signature has none.
func (s Signature) Usages() []string {
	if len(s.ImportsUsages) > 0 {
		return s.ImportsUsages
	}
	return s.ArtifactNames()
}

// LanguageList returns the signature's languages joined the way output rows
// record them.
func (s Signature) LanguageList() string { return strings.Join(s.Languages, ",") }

// Validate checks that the signature can seed a search.
func (s Signature) Validate() error {
	if err := ierrors.ValidateLibraryName(s.Name); err != nil {
		return err
	}
	if len(s.Languages) == 0 {
		return ierrors.New(ierrors.ErrCodeInvalidLibrary, "library %s: no languages", s.Name)
	}
	for _, l := range s.Languages {
		if Find(l) == nil {
			return ierrors.New(ierrors.ErrCodeInvalidLibrary, "library %s: unsupported language %q", s.Name, l)
		}
	}
	strs := s.SearchStrings()
	if len(strs) == 0 {
		return ierrors.New(ierrors.ErrCodeInvalidLibrary, "library %s: no artifacts or imports", s.Name)
	}
	for _, v := range strs {
		if err := ierrors.ValidateSearchString(v); err != nil {
			return err
		}
	}
	return nil
}
