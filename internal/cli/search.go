package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/library"
	"github.com/matzehuels/ghdisco/pkg/search"
	"github.com/matzehuels/ghdisco/pkg/sink"
)

// matchKind names search rows in sinks.
const matchKind = "matches"

// matchColumns is the field order of search rows.
var matchColumns = []string{"library", "repo_name", "path", "name", "sha", "forked"}

type searchOpts struct {
	libraries     []string
	verify        bool
	toggledOutput string
	sizeFrom      int
	sizeTo        int
	workers       int
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	opts := searchOpts{sizeFrom: -1, sizeTo: -1}

	cmd := &cobra.Command{
		Use:   "search <libraries.toml|libraries.csv>",
		Short: "Find every file that references a library",
		Long: `Search GitHub code for every library in the seed file.

Each library yields one seed query per search string and target language.
Queries over the 1000-result cap are split by file size range, then by
sort order, then by extra search terms, until every partition can be
listed in full.

With --verify, each match's content is fetched and checked against the
language's dependency patterns; repositories that match are written as
toggled rows to --toggled-output.`,
		Example: `  # Search, writing matches as CSV
  ghdisco search libraries.toml -o matches.csv

  # Only guava, verifying content
  ghdisco search libraries.toml --library guava --verify --toggled-output toggled.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSearch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.libraries, "library", "l", nil, "only search these libraries")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "verify matches by file content")
	cmd.Flags().StringVar(&opts.toggledOutput, "toggled-output", "", "output for verified rows (default: <output>.toggled<ext>)")
	cmd.Flags().IntVar(&opts.sizeFrom, "size-from", -1, "smallest file size in bytes (overrides config)")
	cmd.Flags().IntVar(&opts.sizeTo, "size-to", -1, "largest file size in bytes (overrides config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent search requests (overrides config)")

	return cmd
}

func (c *CLI) runSearch(ctx context.Context, seedsPath string, opts searchOpts) error {
	sigs, err := library.Load(seedsPath)
	if err != nil {
		return err
	}
	if len(opts.libraries) > 0 {
		sigs = slices.DeleteFunc(sigs, func(s library.Signature) bool {
			return !slices.Contains(opts.libraries, s.Name)
		})
		if len(sigs) == 0 {
			return fmt.Errorf("no library in %s matches %s", seedsPath, strings.Join(opts.libraries, ", "))
		}
	}

	rt, err := c.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sc := rt.cfg.Search
	if opts.sizeFrom >= 0 {
		sc.SizeFrom = opts.sizeFrom
	}
	if opts.sizeTo >= 0 {
		sc.SizeTo = opts.sizeTo
	}
	if opts.workers > 0 {
		sc.Workers = opts.workers
	}
	if sc.SizeTo < sc.SizeFrom {
		return fmt.Errorf("size range %d..%d is empty", sc.SizeFrom, sc.SizeTo)
	}

	out, err := c.openSink(ctx, rt, matchKind, matchColumns, c.flags.output)
	if err != nil {
		return err
	}
	defer out.Close()

	dests := []string{sink.Destination(rt.sinkOptions(matchKind, matchColumns, c.flags.output))}

	var toggled sink.Sink
	if opts.verify {
		path := opts.toggledOutput
		if path == "" {
			path = toggledPath(c.flags.output, rt.cfg.Output.Format)
		}
		if toggled, err = c.openSink(ctx, rt, library.ToggledKind, library.ToggledColumns, path); err != nil {
			return err
		}
		defer toggled.Close()
		dests = append(dests, sink.Destination(rt.sinkOptions(library.ToggledKind, library.ToggledColumns, path)))
	}

	stop := c.observe(ctx, rt, "search")
	defer stop()

	planner := search.NewPlanner(rt.github, rt.alloc, search.Options{
		Cap:      sc.MaxResults,
		PageSize: sc.PageSize,
		Workers:  sc.Workers,
		Logger:   c.Logger,
	})

	var results []libraryResult
	for _, sig := range sigs {
		prog := newProgress(c.Logger)
		var seeds []search.Task
		for _, q := range library.Queries(sig) {
			t := planner.Seed(q, sc.SizeFrom, sc.SizeTo)
			t.Sort = sc.Sort
			seeds = append(seeds, t)
		}
		c.Logger.Info("searching", "library", sig.Name, "seeds", len(seeds))

		var (
			verifier *library.Verifier
			queue    *library.Queue
		)
		if opts.verify {
			verifier = library.NewVerifier(rt.github, rt.alloc, sig)
			queue = verifier.Start(ctx, sc.Workers, func(row map[string]any) error {
				c.Logger.Info("toggled", "library", sig.Name, "repo", row["repo_name"])
				return toggled.Write(ctx, row)
			}, func(m library.Candidate, err error) error {
				switch {
				case errors.Is(err, integrations.ErrNotFound):
					c.Logger.Debug("blob gone", "repo", m.Repo, "path", m.Path)
				case ctx.Err() != nil:
					return ctx.Err()
				default:
					c.Logger.Warn("verify failed", "repo", m.Repo, "path", m.Path, "err", err)
				}
				return nil
			})
		}

		stats, err := planner.Run(ctx, sig.Name, seeds, func(m search.Match) error {
			if err := out.Write(ctx, matchRow(m)); err != nil {
				return fmt.Errorf("write match: %w", err)
			}
			if queue == nil {
				return nil
			}
			return queue.Add(ctx, library.Candidate{Repo: m.RepoName, Path: m.Path, SHA: m.SHA})
		})
		res := libraryResult{name: sig.Name, stats: stats}
		if queue != nil {
			if werr := queue.Wait(); err == nil && werr != nil {
				err = fmt.Errorf("verify: %w", werr)
			}
			res.toggled = verifier.Toggled()
		}
		results = append(results, res)
		if err != nil {
			return err
		}
		prog.done("search finished", "library", sig.Name, "matches", stats.Matches)
	}

	stop()
	printSearchSummary(results, opts.verify)
	printRunInfo(rt.runID, dests...)
	return nil
}

type libraryResult struct {
	name    string
	stats   search.Stats
	toggled int
}

func matchRow(m search.Match) sink.Row {
	return sink.Row{
		"library":   m.Library,
		"repo_name": m.RepoName,
		"path":      m.Path,
		"name":      m.Name,
		"sha":       m.SHA,
		"forked":    m.Fork,
	}
}

// toggledPath derives the verified-row output from the match output.
// Databases keep both kinds in one place; text output written to stdout
// sends toggled rows to a file so the two row shapes never interleave.
func toggledPath(output, format string) string {
	switch {
	case format == sink.FormatSQLite || format == sink.FormatMongo:
		return output
	case output == "" || output == "-":
		return library.ToggledKind + "." + format
	}
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".toggled" + ext
}
