package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/config"
	"github.com/openfroyo/statues/pkg/engine"
	"github.com/openfroyo/statues/pkg/stores"
)

func newEvalCommand() *cobra.Command {
	var (
		queryNames []string
		parallel   int
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "eval <model>",
		Short: "Run the queries of a model file",
		Long: `Run the queries listed in a model file and print their results.

Queries run concurrently, each with its own enumeration state. A failing
query does not stop the others; the command fails if any query failed.`,
		Example: `  # Run every query
  statues eval coins.yaml

  # Run two queries and keep the results in the history database
  statues eval coins.yaml -q p_same -q post --save

  # Machine-readable output
  statues eval dice.cue --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			built, err := loadModel(ctx, args[0])
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return err
			}
			return runEval(ctx, cmd.OutOrStdout(), built, evalOptions{
				names:    queryNames,
				parallel: parallel,
				save:     save,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&queryNames, "query", "q", nil, "run only the named queries")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", engine.DefaultMaxParallel, "maximum queries run at once")
	cmd.Flags().BoolVar(&save, "save", false, "store results in the history database")

	return cmd
}

type evalOptions struct {
	names    []string
	parallel int
	save     bool
}

// evalOutput is the JSON form of one query run.
type evalOutput struct {
	Query    string         `json:"query"`
	Result   *config.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Code     string         `json:"code,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func selectQueries(built *config.Built, names []string) ([]config.QuerySpec, error) {
	if len(names) == 0 {
		return built.Spec.Queries, nil
	}
	byName := make(map[string]config.QuerySpec, len(built.Spec.Queries))
	for _, qs := range built.Spec.Queries {
		byName[qs.Name] = qs
	}
	selected := make([]config.QuerySpec, 0, len(names))
	for _, n := range names {
		qs, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("model %s has no query %q", built.Spec.Name, n)
		}
		selected = append(selected, qs)
	}
	return selected, nil
}

func runEval(ctx context.Context, w io.Writer, built *config.Built, opts evalOptions) error {
	specs, err := selectQueries(built, opts.names)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("model %s has no queries", built.Spec.Name)
	}

	queries := make([]engine.Query, len(specs))
	for i, qs := range specs {
		if queries[i], err = built.Query(qs); err != nil {
			return err
		}
	}

	results, err := engine.Batch(ctx, opts.parallel, queries...)
	if err != nil {
		return err
	}

	outputs := make([]evalOutput, len(results))
	failed := 0
	for i, r := range results {
		outputs[i] = evalOutput{Query: r.Name, Duration: r.Duration}
		if r.Err != nil {
			failed++
			outputs[i].Error = r.Err.Error()
			outputs[i].Code = engine.Code(r.Err)
			continue
		}
		outputs[i].Result = r.Value.(*config.Result)
	}

	if jsonOutput {
		if err := writeJSON(w, outputs); err != nil {
			return err
		}
	} else {
		for _, o := range outputs {
			if o.Error != "" {
				fmt.Fprintf(w, "%s: error: %s\n", o.Query, o.Error)
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", o.Query, o.Result)
		}
	}

	if opts.save {
		if err := saveOutputs(ctx, built, specs, outputs); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	return nil
}

func saveOutputs(ctx context.Context, built *config.Built, specs []config.QuerySpec, outputs []evalOutput) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := uuid.NewString()
	rep := built.Model.Representation().Name()
	records := make([]*stores.Result, len(outputs))
	for i, o := range outputs {
		rec := &stores.Result{
			RunID:          runID,
			Model:          built.Spec.Name,
			Query:          o.Query,
			Kind:           specs[i].Kind,
			Target:         specs[i].Target,
			Representation: rep,
			Status:         stores.ResultStatusSuccess,
			Duration:       o.Duration,
		}
		if o.Error != "" {
			rec.Status = stores.ResultStatusFailed
			msg := o.Error
			rec.Error = &msg
			if o.Code != "" {
				code := o.Code
				rec.ErrorCode = &code
			}
		} else {
			data, err := json.Marshal(o.Result)
			if err != nil {
				return fmt.Errorf("failed to encode result of %s: %w", o.Query, err)
			}
			rec.Outcome = string(data)
			rec.Paths = o.Result.Stats.Paths
			rec.Pruned = o.Result.Stats.Pruned
			rec.Samples = o.Result.Stats.Samples
		}
		records[i] = rec
	}

	if err := store.SaveResults(ctx, records); err != nil {
		return err
	}

	log.Debug().
		Str("run_id", runID).
		Str("db", dbPath).
		Int("results", len(records)).
		Msg("Results saved")
	return nil
}
