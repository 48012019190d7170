package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/integrations/github"
)

// credentialsCommand lists the loaded credentials and optionally checks them.
func (c *CLI) credentialsCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "List the GitHub credentials in the pool",
		Long: `List the GitHub credentials loaded from --token, --token-file, the
environment (GITHUB_TOKEN and GITHUB_TOKEN_1..N) and the .env file.

With --check, every credential is verified against the API and its
remaining core and search quota is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			pool := rt.alloc.Pool()
			if !check {
				printSuccess("%d credential(s) loaded", pool.Size())
				for _, name := range pool.Names() {
					printDetail("%s", name)
				}
				return nil
			}
			return c.checkCredentials(cmd, rt.github, pool)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify each credential and show its remaining quota")
	return cmd
}

func (c *CLI) checkCredentials(cmd *cobra.Command, gh *github.Client, pool *credentials.Pool) error {
	ctx := cmd.Context()
	t := newTable("Credential", "Login", "Core", "Search", "Status")
	var failed []string

	for i := range pool.Size() {
		cred := pool.At(i)
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Checking %s...", cred.Name))
		spinner.Start()
		q, err := gh.Quota(ctx, cred)
		spinner.Stop()
		if spinner.Cancelled() {
			return ctx.Err()
		}
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", cred.Name, err))
			t.Row(cred.Name, "-", "-", "-", "failed")
			continue
		}
		t.Row(cred.Name, q.Login, quotaCell(q.Core), quotaCell(q.Search),
			"resets "+time.Unix(q.Search.Reset, 0).Format("15:04:05"))
	}

	fmt.Fprintln(uiOut, t.Render())
	for _, msg := range failed {
		printError("%s", msg)
	}
	if len(failed) > 0 {
		printWarning("%d of %d credential(s) failed", len(failed), pool.Size())
		return fmt.Errorf("%d credential(s) failed the check", len(failed))
	}
	printSuccess("All %d credential(s) valid", pool.Size())
	return nil
}

func quotaCell(r github.Rate) string {
	return strconv.Itoa(r.Remaining) + "/" + strconv.Itoa(r.Limit)
}
