package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/openfroyo/statues/pkg/prob"
)

// aggregator accumulates path weights per distinct value, in first-seen order.
type aggregator struct {
	rep     prob.Representation
	index   map[any]int
	values  []any
	weights []prob.Value
}

func newAggregator(rep prob.Representation) *aggregator {
	return &aggregator{rep: rep, index: make(map[any]int)}
}

func (a *aggregator) add(v any, w prob.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewEvaluationError(ErrCodeTypeMismatch,
				fmt.Sprintf("value of type %T cannot be grouped: %v", v, r), nil)
		}
	}()

	if i, ok := a.index[v]; ok {
		a.weights[i] = a.weights[i].Add(w)
		return nil
	}
	a.index[v] = len(a.values)
	a.values = append(a.values, v)
	a.weights = append(a.weights, w)
	return nil
}

func (a *aggregator) total() prob.Value {
	return prob.Sum(a.rep, a.weights...)
}

// Outcome is a value with its probability.
type Outcome[V comparable] struct {
	Value V
	P     prob.Value
}

// PMF is the normalized probability mass function of a variable. Its
// outcomes keep the order in which values were first produced by the
// enumeration unless re-ordered with SortedBy.
type PMF[V comparable] struct {
	rep     prob.Representation
	values  []V
	weights []prob.Value
	probs   []prob.Value
	total   prob.Value
	index   map[V]int
}

// newPMF converts aggregated weights to a PMF. A zero total means that the
// evidence eliminated every path.
func newPMF[V comparable](agg *aggregator) (*PMF[V], error) {
	total := agg.total()
	if total.IsZero() {
		return nil, NewEvaluationError(ErrCodeImpossibleCondition,
			"evidence eliminates every outcome", nil)
	}

	p := &PMF[V]{
		rep:     agg.rep,
		values:  make([]V, len(agg.values)),
		weights: agg.weights,
		probs:   make([]prob.Value, len(agg.values)),
		total:   total,
		index:   make(map[V]int, len(agg.values)),
	}
	for i, raw := range agg.values {
		v, ok := cast[V](raw)
		if !ok {
			var zero V
			return nil, NewEvaluationError(ErrCodeTypeMismatch,
				fmt.Sprintf("outcome %v is %T, expected %T", raw, raw, zero), nil)
		}
		q, err := agg.weights[i].Quo(total)
		if err != nil {
			return nil, NewEvaluationError(ErrCodeArithmetic, "normalization failed", err)
		}
		p.values[i] = v
		p.probs[i] = q
		p.index[v] = i
	}
	return p, nil
}

// Representation returns the representation of the probabilities.
func (p *PMF[V]) Representation() prob.Representation { return p.rep }

// Len returns the number of outcomes.
func (p *PMF[V]) Len() int { return len(p.values) }

// Values returns the outcomes' values.
func (p *PMF[V]) Values() []V { return slices.Clone(p.values) }

// Outcomes returns values paired with their probabilities.
func (p *PMF[V]) Outcomes() []Outcome[V] {
	out := make([]Outcome[V], len(p.values))
	for i, v := range p.values {
		out[i] = Outcome[V]{Value: v, P: p.probs[i]}
	}
	return out
}

// P returns the probability of v, zero when v is not an outcome.
func (p *PMF[V]) P(v V) prob.Value {
	if i, ok := p.index[v]; ok {
		return p.probs[i]
	}
	return p.rep.Zero()
}

// Pf returns the probability of v as a float64.
func (p *PMF[V]) Pf(v V) float64 {
	return p.P(v).Float64()
}

// Weight returns the un-normalized weight accumulated by v.
func (p *PMF[V]) Weight(v V) prob.Value {
	if i, ok := p.index[v]; ok {
		return p.weights[i]
	}
	return p.rep.Zero()
}

// Total returns the sum of un-normalized weights of the surviving paths.
func (p *PMF[V]) Total() prob.Value { return p.total }

// Has reports whether v has a non-zero probability.
func (p *PMF[V]) Has(v V) bool {
	_, ok := p.index[v]
	return ok
}

// SortedBy returns a copy of p with outcomes ordered by cmp.
func (p *PMF[V]) SortedBy(cmp func(a, b V) int) *PMF[V] {
	order := make([]int, len(p.values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int { return cmp(p.values[i], p.values[j]) })

	out := &PMF[V]{
		rep:     p.rep,
		values:  make([]V, len(order)),
		weights: make([]prob.Value, len(order)),
		probs:   make([]prob.Value, len(order)),
		total:   p.total,
		index:   make(map[V]int, len(order)),
	}
	for k, i := range order {
		out.values[k] = p.values[i]
		out.weights[k] = p.weights[i]
		out.probs[k] = p.probs[i]
		out.index[p.values[i]] = k
	}
	return out
}

// String renders one "value : probability" line per outcome with values
// right-aligned.
func (p *PMF[V]) String() string {
	labels := make([]string, len(p.values))
	width := 0
	for i, v := range p.values {
		labels[i] = fmt.Sprint(v)
		width = max(width, len(labels[i]))
	}

	var sb strings.Builder
	for i, l := range labels {
		fmt.Fprintf(&sb, "%*s : %s\n", width, l, p.probs[i])
	}
	return sb.String()
}
