package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/augment"
	"github.com/matzehuels/ghdisco/pkg/barrier"
	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/sink"
)

// augmentCommand creates the augment command.
func (c *CLI) augmentCommand() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "augment <repos.csv>",
		Short: "Add repository metadata to a list of repositories",
		Long: `Fetch metadata for every repo_name in the input CSV.

Three independent requests run per repository: repository info (size,
fork source, timestamps, language), contributor and commit totals, and
the first commit. A row is written once all three have answered. Missing
repositories are written with repo_not_found set.`,
		Example: `  ghdisco augment toggled.csv -o augmented.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAugment(cmd.Context(), args[0], workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", augment.DefaultWorkers, "concurrent requests")

	return cmd
}

func (c *CLI) runAugment(ctx context.Context, input string, workers int) error {
	f, err := os.Open(input)
	if err != nil {
		return ierrors.Wrap(ierrors.ErrCodeFileNotFound, err, "open %s", input)
	}
	repos, invalid, err := augment.ReadRepos(f)
	f.Close()
	if err != nil {
		return err
	}
	for _, name := range invalid {
		c.Logger.Warn("skipping invalid repository name", "repo", name)
	}
	if len(repos) == 0 {
		return ierrors.New(ierrors.ErrCodeInvalidInput, "%s lists no repositories", input)
	}

	rt, err := c.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := c.openSink(ctx, rt, augment.Kind, augment.Columns, c.flags.output)
	if err != nil {
		return err
	}
	defer out.Close()

	stop := c.observe(ctx, rt, "augment")
	defer stop()

	prog := newProgress(c.Logger)
	a := augment.New(rt.github, rt.alloc, augment.Options{Workers: workers, Logger: c.Logger})
	stats, err := a.Run(ctx, repos, func(rec barrier.Record) error {
		return out.Write(ctx, rec)
	})
	stop()
	if err != nil {
		return err
	}
	prog.done("augment finished", "repos", stats.Repos, "records", stats.Records)
	printRecordSummary("Augment", []summaryRow{
		{"repositories", stats.Repos},
		{"written", stats.Records},
		{"not found", stats.NotFound},
		{"failed requests", stats.Failures},
		{"unresolved", len(stats.Unresolved)},
	})
	printUnresolved(stats.Unresolved)
	printRunInfo(rt.runID, sink.Destination(rt.sinkOptions(augment.Kind, augment.Columns, c.flags.output)))
	return nil
}
