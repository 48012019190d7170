package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
)

type seedFile struct {
	Library []Signature `toml:"library"`
}

// Load reads signatures from a .toml or .csv seed file and validates them.
func Load(path string) ([]Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ierrors.Wrap(ierrors.ErrCodeFileNotFound, err, "seed file %s", path)
		}
		return nil, err
	}
	defer f.Close()

	var sigs []Signature
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		sigs, err = ReadTOML(f)
	case ".csv":
		sigs, err = ReadCSV(f)
	default:
		return nil, ierrors.New(ierrors.ErrCodeInvalidFormat, "seed file %s: want .toml or .csv", path)
	}
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	for _, s := range sigs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("seed file %s: %w", path, err)
		}
	}
	return sigs, nil
}

// ReadTOML decodes [[library]] tables.
func ReadTOML(r io.Reader) ([]Signature, error) {
	var sf seedFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeInvalidSeed, err, "decode toml")
	}
	for i := range sf.Library {
		sf.Library[i].Languages = lower(sf.Library[i].Languages)
	}
	return sf.Library, nil
}

// ReadCSV decodes rows with library, languages, artifacts and
// imports_usages columns. Languages are comma-separated; artifact and usage
// lists are separated by semicolons or newlines, since artifact entries
// carry comma-separated variants.
func ReadCSV(r io.Reader) ([]Signature, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeInvalidSeed, err, "decode csv")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["library"]; !ok {
		return nil, ierrors.New(ierrors.ErrCodeInvalidSeed, "csv header has no library column")
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var sigs []Signature
	for _, row := range rows[1:] {
		name := get(row, "library")
		if name == "" {
			continue
		}
		sigs = append(sigs, Signature{
			Name:          name,
			Languages:     lower(split(get(row, "languages"), ",")),
			Artifacts:     split(get(row, "artifacts"), ";\n"),
			ImportsUsages: split(get(row, "imports_usages"), ";\n"),
		})
	}
	return sigs, nil
}

func split(s, seps string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func lower(ss []string) []string {
	for i, s := range ss {
		ss[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return ss
}
