package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/config"
	"github.com/openfroyo/statues/pkg/engine"
)

func newWatchCommand() *cobra.Command {
	var (
		queryNames []string
		parallel   int
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "watch <model>",
		Short: "Re-run a model's queries whenever the file changes",
		Long: `Run the queries of a model file, then run them again each time the file
is saved. Invalid edits are reported and the previous results stay on
screen until the file is fixed. Stop with Ctrl-C.`,
		Example: `  statues watch coins.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			opts := evalOptions{names: queryNames, parallel: parallel, save: save}

			evaluate := func(built *config.Built) {
				if err := runEval(ctx, w, built, opts); err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
				}
			}

			loader := config.NewLoader()
			spec, err := loader.Load(ctx, args[0])
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return err
			}
			built, err := config.Build(ctx, spec)
			if err != nil {
				return err
			}
			evaluate(built)

			watcher, err := loader.Watch(ctx, args[0], config.DefaultDebounce, func(spec *config.ModelSpec, err error) {
				fmt.Fprintf(w, "\n--- %s changed ---\n", args[0])
				if err != nil {
					fmt.Fprintf(w, "invalid model file:\n")
					if !printLoadErrors(w, err) {
						fmt.Fprintf(w, "  %v\n", err)
					}
					return
				}
				built, err := config.Build(ctx, spec)
				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					return
				}
				evaluate(built)
			})
			if err != nil {
				return err
			}
			defer watcher.Close()

			<-ctx.Done()
			log.Debug().Str("path", args[0]).Msg("Stopped watching")
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&queryNames, "query", "q", nil, "run only the named queries")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", engine.DefaultMaxParallel, "maximum queries run at once")
	cmd.Flags().BoolVar(&save, "save", false, "store each run in the history database")

	return cmd
}
