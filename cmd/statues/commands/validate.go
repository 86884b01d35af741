package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/config"
	"github.com/openfroyo/statues/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		policyPaths []string
		noLint      bool
	)

	cmd := &cobra.Command{
		Use:   "validate <model>...",
		Short: "Check model files without running queries",
		Long: `Parse, validate and build each model file and report every problem found.

Building catches what the schema cannot, such as cycles between variables
or expressions that fail to compile. Valid models are then linted with the
built-in Rego policies and any given with --policy; a violation with error
severity fails validation.`,
		Example: `  statues validate models/*.yaml
  statues validate dice.yaml --policy policies/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			var eng *policy.Engine
			if !noLint {
				var err error
				if eng, err = policy.NewEngine(log.Logger); err != nil {
					return err
				}
				if len(policyPaths) > 0 {
					if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
						return err
					}
				}
			}

			failed := 0
			for _, path := range args {
				built, err := loadModel(ctx, path)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s: invalid\n", path)
					if !printLoadErrors(w, err) {
						fmt.Fprintf(w, "  %v\n", err)
					}
					continue
				}
				fmt.Fprintf(w, "%s: ok (model %s, %d variables, %d queries)\n",
					path, built.Spec.Name, len(built.Spec.Variables), len(built.Spec.Queries))

				if eng == nil {
					continue
				}
				allowed, err := lint(ctx, w, eng, built)
				if err != nil {
					return err
				}
				if !allowed {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d model files are invalid", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional .rego policy files or directories")
	cmd.Flags().BoolVar(&noLint, "no-lint", false, "skip policy checks")

	return cmd
}

// lint prints the policy findings for a model and reports whether it passed.
func lint(ctx context.Context, w io.Writer, eng *policy.Engine, built *config.Built) (bool, error) {
	in, err := policy.NewInput(built)
	if err != nil {
		return false, err
	}
	report, err := eng.Evaluate(ctx, in)
	if err != nil {
		return false, err
	}

	for _, v := range report.Violations {
		fmt.Fprintf(w, "  %-7s %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  policy failed: %s\n", f)
	}
	return report.Allowed, nil
}
