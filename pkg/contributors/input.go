package contributors

import (
	"encoding/csv"
	"io"
	"strings"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/integrations"
)

// ReadTargets reads a CSV with a library column and either a Repositories
// column of newline-separated GitHub URLs or a repo_name column. Names taken
// from URLs are lower-cased. Entries that are not repositories are returned
// in invalid.
func ReadTargets(r io.Reader) (targets []Target, invalid []string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, nil, ierrors.Wrap(ierrors.ErrCodeInvalidInput, err, "read csv header")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	libCol, ok := col["library"]
	if !ok {
		return nil, nil, ierrors.New(ierrors.ErrCodeInvalidInput, "csv has no library column")
	}
	reposCol, hasRepos := col["Repositories"]
	nameCol, hasName := col["repo_name"]
	if !hasRepos && !hasName {
		return nil, nil, ierrors.New(ierrors.ErrCodeInvalidInput, "csv needs a Repositories or repo_name column")
	}
	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return targets, invalid, nil
		}
		if err != nil {
			return nil, nil, ierrors.Wrap(ierrors.ErrCodeInvalidInput, err, "read csv")
		}
		lib := field(row, libCol)
		if urls := field(row, reposCol); hasRepos && urls != "" {
			for _, u := range strings.Split(urls, "\n") {
				if u = strings.TrimSpace(u); u == "" {
					continue
				}
				name, err := integrations.RepoNameFromURL(strings.ToLower(u))
				if err != nil {
					invalid = append(invalid, u)
					continue
				}
				targets = append(targets, Target{Library: lib, Repo: name})
			}
			continue
		}
		if !hasName {
			continue
		}
		name := field(row, nameCol)
		if name == "" {
			continue
		}
		if ierrors.ValidateRepoName(name) != nil {
			invalid = append(invalid, name)
			continue
		}
		targets = append(targets, Target{Library: lib, Repo: name})
	}
}
