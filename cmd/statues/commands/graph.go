package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/engine"
)

func newGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph <model> [variable...]",
		Short: "Show the dependency graph of a model",
		Long: `Show the variables a model is built from, level by level.

Without variable names the whole model is shown. With --dot the graph is
printed in Graphviz format.`,
		Example: `  statues graph dice.yaml
  statues graph dice.yaml sum --dot | dot -Tsvg > sum.svg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			built, err := loadModel(ctx, args[0])
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return err
			}

			roots := built.Roots()
			if len(args) > 1 {
				roots = roots[:0:0]
				for _, name := range args[1:] {
					v, ok := built.Var(name)
					if !ok {
						return fmt.Errorf("model %s has no variable %q", built.Spec.Name, name)
					}
					roots = append(roots, v)
				}
			}

			g, err := built.Model.Graph(roots...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if dot {
				fmt.Fprint(w, g.ToDOT())
				return nil
			}
			if jsonOutput {
				return writeJSON(w, graphSummary(g))
			}

			fmt.Fprintf(w, "%d nodes, %d atomic, depth %d, at most %s paths\n",
				len(g.Nodes), len(g.Atomics()), g.Depth, g.WorstCasePaths())
			for i, level := range g.Levels {
				fmt.Fprintf(w, "level %d:\n", i)
				for _, id := range level {
					n := g.Nodes[id]
					fmt.Fprintf(w, "  %-20s %-10s %d outcomes\n", n.Label, n.Kind, n.Outcomes)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print the graph in Graphviz DOT format")

	return cmd
}

type graphNodeSummary struct {
	Label     string   `json:"label"`
	Kind      string   `json:"kind"`
	Op        string   `json:"op,omitempty"`
	Level     int      `json:"level"`
	Outcomes  int      `json:"outcomes"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func graphSummary(g *engine.Graph) map[string]any {
	ids := make([]engine.NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]graphNodeSummary, 0, len(ids))
	for _, id := range ids {
		n := g.Nodes[id]
		s := graphNodeSummary{Label: n.Label, Kind: n.Kind, Op: n.Op, Level: n.Level, Outcomes: n.Outcomes}
		for _, dep := range n.Dependencies {
			s.DependsOn = append(s.DependsOn, g.Nodes[dep].Label)
		}
		nodes = append(nodes, s)
	}

	return map[string]any{
		"depth":            g.Depth,
		"atomics":          len(g.Atomics()),
		"worst_case_paths": g.WorstCasePaths().String(),
		"nodes":            nodes,
	}
}
