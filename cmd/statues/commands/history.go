package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		model       string
		query       string
		runID       string
		limit       int
		pruneBefore time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or prune saved query results",
		Long: `List results saved by "eval --save", newest first.

With --prune-before, results older than the given age are deleted instead.`,
		Example: `  statues history --model coins --limit 20
  statues history --prune-before 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if pruneBefore > 0 {
				n, err := store.DeleteResults(ctx, time.Now().Add(-pruneBefore))
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "deleted %d results\n", n)
				return nil
			}

			results, err := store.ListResults(ctx, stores.ResultFilter{
				Model: model,
				Query: query,
				RunID: runID,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(w, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(w, "no results")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tMODEL\tQUERY\tKIND\tSTATUS\tPATHS\tDURATION\tRUN")
			for _, r := range results {
				status := string(r.Status)
				if r.ErrorCode != nil {
					status += " (" + *r.ErrorCode + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime),
					r.Model, r.Query, r.Kind, status, r.Paths,
					r.Duration.Round(time.Microsecond), shortID(r.RunID))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "only results of this model")
	cmd.Flags().StringVar(&query, "query", "", "only results of this query")
	cmd.Flags().StringVar(&runID, "run", "", "only results of this run")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results listed (0 for all)")
	cmd.Flags().DurationVar(&pruneBefore, "prune-before", 0, "delete results older than this age")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
