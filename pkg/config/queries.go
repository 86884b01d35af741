package config

import (
	"context"
	"fmt"

	"github.com/openfroyo/statues/pkg/engine"
)

// Result is the outcome of one model file query.
type Result struct {
	Query          string          `json:"query"`
	Target         string          `json:"target"`
	Kind           string          `json:"kind"`
	Representation string          `json:"representation"`
	Outcomes       []OutcomeResult `json:"outcomes,omitempty"`
	Probability    string          `json:"probability,omitempty"`
	Count          int64           `json:"count,omitempty"`
	Truth          *bool           `json:"truth,omitempty"`
	Samples        []any           `json:"samples,omitempty"`
	Stats          engine.Stats    `json:"stats"`
}

// OutcomeResult is one value of a distribution. Weight is set for weights
// queries, Probability otherwise.
type OutcomeResult struct {
	Value       any     `json:"value"`
	Probability string  `json:"probability,omitempty"`
	Weight      string  `json:"weight,omitempty"`
	Float       float64 `json:"float"`
}

// Queries prepares every query of the model file for engine.Batch.
func (b *Built) Queries() ([]engine.Query, error) {
	queries := make([]engine.Query, len(b.Spec.Queries))
	for i, qs := range b.Spec.Queries {
		q, err := b.Query(qs)
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}
	return queries, nil
}

// Query prepares one query. Nodes needed by the query, such as per-query
// evidence or the event target == value, are built now so that running the
// query never writes to the model.
func (b *Built) Query(qs QuerySpec) (engine.Query, error) {
	target, ok := b.vars[qs.Target]
	if !ok {
		return engine.Query{}, fmt.Errorf("query %s: unknown variable %q", qs.Name, qs.Target)
	}

	if len(qs.Given) > 0 {
		evidence := make([]engine.Var[bool], len(qs.Given))
		for i, g := range qs.Given {
			ev, ok := b.vars[g]
			if !ok {
				return engine.Query{}, fmt.Errorf("query %s: unknown variable %q", qs.Name, g)
			}
			evidence[i] = engine.Typed[bool](ev)
		}
		target = engine.Given(target, evidence...)
	}

	var event engine.Var[bool]
	switch qs.Kind {
	case KindProbability, KindTrue, KindFeasible:
		if qs.Value != nil {
			val, err := normalize(qs.Value)
			if err != nil {
				return engine.Query{}, fmt.Errorf("query %s: %w", qs.Name, err)
			}
			event = engine.Is(target, val)
		} else {
			event = engine.Typed[bool](target)
		}
	}

	var opts []engine.Option
	if qs.Seed != nil {
		opts = append(opts, engine.WithSeed(*qs.Seed))
	}

	rep := b.Model.Representation()
	run := func(ctx context.Context) (any, error) {
		res := &Result{
			Query:          qs.Name,
			Target:         qs.Target,
			Kind:           qs.Kind,
			Representation: rep.Name(),
		}
		opts := append(opts[:len(opts):len(opts)], engine.WithStats(&res.Stats))

		switch qs.Kind {
		case KindDistribution:
			pmf, err := engine.Distribution(ctx, target, opts...)
			if err != nil {
				return nil, err
			}
			res.Outcomes = outcomes(pmf)

		case KindEstimate:
			pmf, err := engine.Estimate(ctx, target, qs.Trials, opts...)
			if err != nil {
				return nil, err
			}
			res.Outcomes = outcomes(pmf)

		case KindWeights:
			entries, err := engine.Weights(ctx, target, opts...)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				res.Outcomes = append(res.Outcomes, OutcomeResult{
					Value:  e.Value,
					Weight: e.Weight.String(),
					Float:  e.Weight.Float64(),
				})
			}

		case KindProbability:
			p, err := engine.P(ctx, event, opts...)
			if err != nil {
				return nil, err
			}
			res.Probability = p.String()

		case KindCases:
			n, err := engine.Cases(ctx, target, opts...)
			if err != nil {
				return nil, err
			}
			res.Count = n

		case KindSample:
			draws, err := engine.Sample(ctx, target, qs.Trials, opts...)
			if err != nil {
				return nil, err
			}
			res.Samples = draws

		case KindTrue, KindFeasible:
			check := engine.IsTrue
			if qs.Kind == KindFeasible {
				check = engine.IsFeasible
			}
			ok, err := check(ctx, event, opts...)
			if err != nil {
				return nil, err
			}
			res.Truth = &ok

		default:
			return nil, fmt.Errorf("unknown query kind %q", qs.Kind)
		}
		return res, nil
	}

	return engine.Query{Name: qs.Name, Run: run}, nil
}

func outcomes(pmf *engine.PMF[any]) []OutcomeResult {
	sorted := pmf.SortedBy(compareValues)
	out := make([]OutcomeResult, 0, sorted.Len())
	for _, o := range sorted.Outcomes() {
		out = append(out, OutcomeResult{
			Value:       o.Value,
			Probability: o.P.String(),
			Float:       o.P.Float64(),
		})
	}
	return out
}

// String renders the result for terminal output.
func (r *Result) String() string {
	switch {
	case r.Probability != "":
		return fmt.Sprintf("P(%s) = %s", r.Target, r.Probability)
	case r.Truth != nil:
		return fmt.Sprintf("%s(%s) = %t", r.Kind, r.Target, *r.Truth)
	case r.Kind == KindCases:
		return fmt.Sprintf("cases(%s) = %d", r.Target, r.Count)
	case r.Samples != nil:
		return fmt.Sprintf("%s: %v", r.Target, r.Samples)
	}

	var s string
	for _, o := range r.Outcomes {
		w := o.Probability
		if w == "" {
			w = o.Weight
		}
		s += fmt.Sprintf("  %v : %s\n", o.Value, w)
	}
	return r.Target + "\n" + s
}
