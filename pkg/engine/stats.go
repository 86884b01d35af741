package engine

import (
	"cmp"
	"context"
	"math"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/openfroyo/statues/pkg/prob"
)

// Number is the constraint of the arithmetic operators and numeric
// statistics.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mode returns the most probable values, in outcome order.
func (p *PMF[V]) Mode() []V {
	var best prob.Value
	var out []V
	for i, q := range p.probs {
		switch {
		case best == nil || q.Cmp(best) > 0:
			best = q
			out = append(out[:0], p.values[i])
		case q.Cmp(best) == 0:
			out = append(out, p.values[i])
		}
	}
	return out
}

// Entropy returns the Shannon entropy of p in bits.
func (p *PMF[V]) Entropy() float64 {
	h := 0.0
	for _, q := range p.probs {
		if f := q.Float64(); f > 0 {
			h -= f * math.Log2(f)
		}
	}
	return h
}

// InformationOf returns the self-information of v in bits, +Inf when v is
// not an outcome.
func (p *PMF[V]) InformationOf(v V) float64 {
	f := p.Pf(v)
	if f <= 0 {
		return math.Inf(1)
	}
	return -math.Log2(f)
}

// MeanF returns the expected value of a numeric PMF as a float64.
func MeanF[V Number](p *PMF[V]) float64 {
	m := 0.0
	for i, v := range p.values {
		m += float64(v) * p.probs[i].Float64()
	}
	return m
}

// VarianceF returns the variance of a numeric PMF as a float64.
func VarianceF[V Number](p *PMF[V]) float64 {
	mean := MeanF(p)
	s := 0.0
	for i, v := range p.values {
		d := float64(v) - mean
		s += d * d * p.probs[i].Float64()
	}
	return s
}

// StdDevF returns the standard deviation of a numeric PMF as a float64.
func StdDevF[V Number](p *PMF[V]) float64 {
	return math.Sqrt(VarianceF(p))
}

// Mean returns the exact expected value of an integer PMF in the PMF's
// representation.
func Mean[V constraints.Integer](p *PMF[V]) prob.Value {
	m := p.rep.Zero()
	for i, v := range p.values {
		m = m.Add(p.rep.FromInt(int64(v)).Mul(p.probs[i]))
	}
	return m
}

// Sorted returns a copy of p with outcomes in ascending value order.
func Sorted[V cmp.Ordered](p *PMF[V]) *PMF[V] {
	return p.SortedBy(cmp.Compare[V])
}

// CDF returns the cumulative distribution of p: outcomes in ascending value
// order, each paired with P(X <= value).
func CDF[V cmp.Ordered](p *PMF[V]) []Outcome[V] {
	order := slices.Clone(p.values)
	slices.Sort(order)

	out := make([]Outcome[V], len(order))
	acc := p.rep.Zero()
	for i, v := range order {
		acc = acc.Add(p.P(v))
		out[i] = Outcome[V]{Value: v, P: acc}
	}
	return out
}

// JointEntropy returns the entropy in bits of the joint distribution of
// nodes.
func JointEntropy(ctx context.Context, nodes []Node, opts ...Option) (float64, error) {
	j, err := Joint(nodes...)
	if err != nil {
		return 0, err
	}
	return entropyOf(ctx, j, opts)
}

// CondEntropy returns H(a | b) in bits, the uncertainty left on a once b is
// known.
func CondEntropy[A, B comparable](ctx context.Context, a Var[A], b Var[B], opts ...Option) (float64, error) {
	hab, err := entropyOf(ctx, PairOf(a, b), opts)
	if err != nil {
		return 0, err
	}
	hb, err := entropyOf(ctx, b, opts)
	if err != nil {
		return 0, err
	}
	return max(0, hab-hb), nil
}

// MutualInformation returns I(a; b) in bits.
func MutualInformation[A, B comparable](ctx context.Context, a Var[A], b Var[B], opts ...Option) (float64, error) {
	ha, err := entropyOf(ctx, a, opts)
	if err != nil {
		return 0, err
	}
	hb, err := entropyOf(ctx, b, opts)
	if err != nil {
		return 0, err
	}
	hab, err := entropyOf(ctx, PairOf(a, b), opts)
	if err != nil {
		return 0, err
	}
	return max(0, ha+hb-hab), nil
}

func entropyOf[V comparable](ctx context.Context, v Var[V], opts []Option) (float64, error) {
	pmf, err := Distribution(ctx, v, opts...)
	if err != nil {
		return 0, err
	}
	return pmf.Entropy(), nil
}

// LR returns the likelihood ratio P(e | H) / P(e | not H) of evidence e for
// the hypothesis H, the conjunction of hyps. It fails with
// ErrImpossibleCondition when H is certainly true or certainly false, and
// with ErrCodeArithmetic when P(e | not H) is zero.
func LR(ctx context.Context, e Var[bool], hyps ...Var[bool]) (prob.Value, error) {
	if len(hyps) == 0 {
		return nil, NewConstructionError(ErrCodeValidation, "likelihood ratio needs at least one hypothesis", nil)
	}
	h, err := Reduce(func(x, y bool) bool { return x && y }, hyps...)
	if err != nil {
		return nil, err
	}

	pos, err := P(ctx, Given(e, h))
	if err != nil {
		return nil, err
	}
	neg, err := P(ctx, Given(e, Not(h)))
	if err != nil {
		return nil, err
	}
	if neg.IsZero() {
		return nil, NewEvaluationError(ErrCodeArithmetic, "evidence is impossible when the hypothesis is false", nil)
	}
	r, err := pos.Quo(neg)
	if err != nil {
		return nil, NewEvaluationError(ErrCodeArithmetic, "likelihood ratio", err)
	}
	return r, nil
}
