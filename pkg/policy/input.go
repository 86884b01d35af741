package policy

import (
	"fmt"
	"math/big"
	"time"

	"github.com/openfroyo/statues/pkg/config"
	"github.com/openfroyo/statues/pkg/engine"
)

// NewInput describes a built model for policy evaluation.
func NewInput(built *config.Built) (*Input, error) {
	spec := built.Spec
	in := &Input{
		Name:           spec.Name,
		Representation: built.Model.Representation().Name(),
		Limits: LimitsInput{
			MaxPaths:       spec.Limits.MaxPaths,
			MaxSampleTries: spec.Limits.MaxSampleTries,
		},
		Variables: make(map[string]VariableInput, len(spec.Variables)),
		Queries:   make([]QueryInput, 0, len(spec.Queries)),
	}
	if spec.Limits.Timeout > 0 {
		in.Limits.Timeout = time.Duration(spec.Limits.Timeout).String()
	}

	g, err := built.Model.Graph(built.Roots()...)
	if err != nil {
		return nil, err
	}

	names := make(map[engine.NodeID]string, len(spec.Variables))
	for _, name := range built.Names() {
		v, _ := built.Var(name)
		names[v.ID()] = name
	}

	queried, err := queriedNodes(built)
	if err != nil {
		return nil, err
	}

	for id, name := range names {
		n, ok := g.Nodes[id]
		if !ok {
			continue
		}
		in.Variables[name] = VariableInput{
			Form:         spec.Variables[name].Form(),
			Outcomes:     resolve(g, n).Outcomes,
			Level:        n.Level,
			Dependencies: namedDependencies(g, names, n),
			Queried:      queried[id],
		}
	}

	for _, qs := range spec.Queries {
		v, ok := built.Var(qs.Target)
		if !ok {
			return nil, fmt.Errorf("query %s: unknown variable %q", qs.Name, qs.Target)
		}
		qg, err := built.Model.Graph(v)
		if err != nil {
			return nil, err
		}
		paths, _ := new(big.Float).SetInt(qg.WorstCasePaths()).Float64()
		in.Queries = append(in.Queries, QueryInput{
			Name:           qs.Name,
			Target:         qs.Target,
			Kind:           qs.Kind,
			Trials:         qs.Trials,
			WorstCasePaths: paths,
		})
	}

	return in, nil
}

// resolve follows a named placeholder to its definition. Only atomic
// nodes report outcome counts.
func resolve(g *engine.Graph, n *engine.GraphNode) *engine.GraphNode {
	for n.Kind == "ref" && len(n.Dependencies) == 1 {
		next, ok := g.Nodes[n.Dependencies[0]]
		if !ok {
			break
		}
		n = next
	}
	return n
}

// queriedNodes returns the nodes some query target or evidence depends on.
func queriedNodes(built *config.Built) (map[engine.NodeID]bool, error) {
	var roots []engine.Node
	for _, qs := range built.Spec.Queries {
		for _, name := range append([]string{qs.Target}, qs.Given...) {
			if v, ok := built.Var(name); ok {
				roots = append(roots, v)
			}
		}
	}

	out := make(map[engine.NodeID]bool)
	if len(roots) == 0 {
		return out, nil
	}
	g, err := built.Model.Graph(roots...)
	if err != nil {
		return nil, err
	}
	for id := range g.Nodes {
		out[id] = true
	}
	return out, nil
}

// namedDependencies lists the variables n depends on, looking through
// unnamed helper nodes.
func namedDependencies(g *engine.Graph, names map[engine.NodeID]string, n *engine.GraphNode) []string {
	seen := make(map[engine.NodeID]bool)
	deps := []string{}

	var walk func(ids []engine.NodeID)
	walk = func(ids []engine.NodeID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if name, ok := names[id]; ok {
				deps = append(deps, name)
				continue
			}
			if dep, ok := g.Nodes[id]; ok {
				walk(dep.Dependencies)
			}
		}
	}
	walk(n.Dependencies)

	return deps
}
