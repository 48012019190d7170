package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/barrier"
	"github.com/matzehuels/ghdisco/pkg/contributors"
	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/sink"
)

// contributorsCommand creates the contributors command.
func (c *CLI) contributorsCommand() *cobra.Command {
	var (
		workers int
		top     int
	)

	cmd := &cobra.Command{
		Use:   "contributors <libraries.csv>",
		Short: "Extract identities of top contributors",
		Long: `List the top contributors of every repository in the input CSV and
record the author and committer of each contributor's latest commit.

The CSV needs a library column and either a Repositories column of
newline-separated GitHub URLs or a repo_name column. GitHub no-reply
addresses are skipped.`,
		Example: `  ghdisco contributors libraries.csv -o contributors.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runContributors(cmd.Context(), args[0], top, workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", contributors.DefaultWorkers, "concurrent requests")
	cmd.Flags().IntVar(&top, "top", contributors.DefaultTop, "contributors per repository")

	return cmd
}

func (c *CLI) runContributors(ctx context.Context, input string, top, workers int) error {
	f, err := os.Open(input)
	if err != nil {
		return ierrors.Wrap(ierrors.ErrCodeFileNotFound, err, "open %s", input)
	}
	targets, invalid, err := contributors.ReadTargets(f)
	f.Close()
	if err != nil {
		return err
	}
	for _, name := range invalid {
		c.Logger.Warn("skipping invalid repository", "entry", name)
	}
	if len(targets) == 0 {
		return ierrors.New(ierrors.ErrCodeInvalidInput, "%s lists no repositories", input)
	}

	rt, err := c.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := c.openSink(ctx, rt, contributors.Kind, contributors.Columns, c.flags.output)
	if err != nil {
		return err
	}
	defer out.Close()

	stop := c.observe(ctx, rt, "contributors")
	defer stop()

	prog := newProgress(c.Logger)
	x := contributors.New(rt.github, rt.alloc, contributors.Options{Top: top, Workers: workers, Logger: c.Logger})
	stats, err := x.Run(ctx, targets, func(rec barrier.Record) error {
		return out.Write(ctx, rec)
	})
	stop()
	if err != nil {
		return err
	}
	prog.done("contributors finished", "targets", stats.Repos, "rows", stats.Rows)
	printRecordSummary("Contributors", []summaryRow{
		{"repositories", stats.Repos},
		{"logins", stats.Logins},
		{"identities", stats.Rows},
		{"not found", stats.NotFound},
		{"failed requests", stats.Failures},
		{"unresolved", len(stats.Unresolved)},
	})
	printUnresolved(stats.Unresolved)
	printRunInfo(rt.runID, sink.Destination(rt.sinkOptions(contributors.Kind, contributors.Columns, c.flags.output)))
	return nil
}
