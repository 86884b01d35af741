package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statues/pkg/prob"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func coin(m *Model, heads, tails int64) Var[string] {
	return must(FromFreqs(m, Freq[string]{Value: "H", Count: heads}, Freq[string]{Value: "T", Count: tails}))
}

func die(m *Model) Var[int] {
	return must(Uniform(m, 1, 2, 3, 4, 5, 6))
}

// probs renders a PMF sorted by value as "v=p" pairs.
func probs[V comparable](p *PMF[V]) map[string]string {
	out := make(map[string]string, p.Len())
	for _, o := range p.Outcomes() {
		out[fmt.Sprint(o.Value)] = o.P.String()
	}
	return out
}

var representations = []prob.Representation{prob.Rational(), prob.Float(), prob.Decimal()}

func TestAtomic_NormalizedProbabilities(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())

	a := coin(m, 3, 1)
	pmf, err := Distribution(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, "3/4", pmf.P("H").String())
	assert.Equal(t, "1/4", pmf.P("T").String())
	assert.Equal(t, "4", pmf.Total().String())
	assert.Equal(t, []string{"H", "T"}, pmf.Values())
	assert.True(t, pmf.P("X").IsZero())
}

func TestAtomic_Validation(t *testing.T) {
	m := NewModel(prob.Rational())
	rep := m.Representation()

	tests := []struct {
		name    string
		entries []Entry[string]
	}{
		{name: "empty", entries: nil},
		{name: "duplicate", entries: []Entry[string]{{"a", rep.One()}, {"a", rep.One()}}},
		{name: "zero weight", entries: []Entry[string]{{"a", rep.Zero()}}},
		{name: "negative weight", entries: []Entry[string]{{"a", rep.FromInt(-1)}}},
		{name: "nil weight", entries: []Entry[string]{{"a", nil}}},
		{name: "foreign representation", entries: []Entry[string]{{"a", prob.Float().One()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := m.Len()
			_, err := Atomic(m, tt.entries...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDistribution))
			assert.True(t, IsConstruction(err))
			assert.Equal(t, before, m.Len(), "failed construction must not grow the arena")
		})
	}
}

func TestConstructionHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)

	vals := must(FromValues(m, "a", "b", "a"))
	pmf := must(Distribution(ctx, vals))
	assert.Equal(t, map[string]string{"a": "2/3", "b": "1/3"}, probs(pmf))

	byMap := must(FromMap(m, map[int]int64{2: 1, 1: 3}))
	assert.Equal(t, []int{1, 2}, must(Distribution(ctx, byMap)).Values())

	c := Certain(m, 42)
	assert.Equal(t, map[string]string{"42": "1"}, probs(must(Distribution(ctx, c))))

	b := must(Bernoulli(m, prob.NewRational(1, 3)))
	assert.Equal(t, "1/3", must(P(ctx, b)).String())

	never := must(Bernoulli(m, m.Representation().Zero()))
	assert.Equal(t, []bool{false}, must(Distribution(ctx, never)).Values())

	_, err := Bernoulli(m, prob.NewRational(3, 2))
	assert.True(t, errors.Is(err, ErrInvalidDistribution))
}

func TestSelfCorrelation(t *testing.T) {
	ctx := context.Background()
	for _, rep := range representations {
		t.Run(rep.Name(), func(t *testing.T) {
			m := NewModel(rep)
			x := die(m)

			zero := Is(Sub(x, x), 0)
			p, err := P(ctx, zero)
			require.NoError(t, err)
			assert.True(t, p.IsOne(), "P(X-X == 0) = %s", p)

			sure, err := IsTrue(ctx, zero)
			require.NoError(t, err)
			assert.True(t, sure)
		})
	}
}

func TestDeterminism(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d1, d2 := die(m), die(m)
	sum := Add(d1, Max(d1, d2))

	first := must(Distribution(ctx, sum))
	second := must(Distribution(ctx, sum))
	assert.Equal(t, first.String(), second.String())
}

func TestIndependentCoins(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 3, 1)
	b := coin(m, 1, 1)

	p, err := P(ctx, Eq(a, b))
	require.NoError(t, err)
	// (3*1 + 1*1) / (4*2)
	assert.Equal(t, "1/2", p.String())

	n, err := Cases(ctx, Eq(a, b))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestGiven_TrivialAndDiagonal(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 1, 1)
	c := coin(m, 1, 1)

	trivial := must(Distribution(ctx, Given(a, Eq(a, a))))
	assert.Equal(t, map[string]string{"H": "1/2", "T": "1/2"}, probs(trivial))

	diagonal := Given(a, Eq(a, c))
	pmf := must(Distribution(ctx, diagonal))
	assert.Equal(t, map[string]string{"H": "1/2", "T": "1/2"}, probs(pmf))
	assert.Equal(t, "2", pmf.Total().String(), "half of the four paths survive")

	joint := must(Distribution(ctx, Given(PairOf(a, c), Eq(a, c))))
	assert.Equal(t, map[string]string{"(H, H)": "1/2", "(T, T)": "1/2"}, probs(joint))
}

func TestSharedNodeChargedOncePerPath(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	x := must(FromFreqs(m, Freq[int]{Value: 1, Count: 1}, Freq[int]{Value: 2, Count: 2}, Freq[int]{Value: 3, Count: 3}))
	y := must(FromFreqs(m, Freq[int]{Value: 0, Count: 5}, Freq[int]{Value: 1, Count: 7}))

	// x appears three times but is bound once per path.
	e := Add(Sub(x, x), Add(y, x))

	n, err := Cases(ctx, e)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n, "3 values of x times 2 values of y")

	pmf := must(Distribution(ctx, e))
	assert.Equal(t, "72", pmf.Total().String(), "weight sum 6 of x times 12 of y")
	assert.Equal(t, map[string]string{
		"1": "5/72",
		"2": "17/72",
		"3": "29/72",
		"4": "7/24",
	}, probs(pmf))

	a := coin(m, 3, 1)
	trivial := must(Distribution(ctx, Given(a, Eq(a, a))))
	assert.Equal(t, "4", trivial.Total().String())
	assert.Equal(t, "3/4", trivial.P("H").String())
}

func TestGiven_SumsToOne(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d1, d2 := die(m), die(m)
	sum := Add(d1, d2)
	high := Map(sum, func(s int) bool { return s > 7 })

	pmf := must(Distribution(ctx, Given(d1, high)))
	total := m.Representation().Zero()
	for _, o := range pmf.Outcomes() {
		total = total.Add(o.P)
	}
	assert.True(t, total.IsOne())
	assert.False(t, pmf.Has(1), "d1 = 1 cannot reach a sum above 7")
	assert.Equal(t, "1/3", pmf.P(6).String())
}

func TestGiven_Impossible(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 1, 1)

	_, err := Distribution(ctx, Given(a, Is(a, "X")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImpossibleCondition))
	assert.True(t, IsEvaluation(err))

	feasible, err := IsFeasible(ctx, Is(a, "X"))
	require.NoError(t, err)
	assert.False(t, feasible)
}

func TestGiven_ChainedIsAssociative(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d := die(m)
	odd := Map(d, func(v int) bool { return v%2 == 1 })
	big := Map(d, func(v int) bool { return v > 2 })

	nested := must(Distribution(ctx, Given(Given(d, odd), big)))
	flat := must(Distribution(ctx, Given(d, odd, big)))
	conj := must(Distribution(ctx, Given(d, And(odd, big))))

	assert.Equal(t, map[string]string{"3": "1/2", "5": "1/2"}, probs(flat))
	assert.Equal(t, probs(flat), probs(nested))
	assert.Equal(t, probs(flat), probs(conj))
}

func TestGiven_NonBoolEvidence(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	_, err := Distribution(ctx, Given(d, Typed[bool](d)))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestRepresentationsAgree(t *testing.T) {
	ctx := context.Background()
	var got []float64
	for _, rep := range representations {
		m := NewModel(rep)
		seven := Is(Add(die(m), die(m)), 7)
		p, err := Pf(ctx, seven)
		require.NoError(t, err)
		got = append(got, p)
	}
	for _, p := range got {
		assert.InDelta(t, 1.0/6.0, p, 1e-12)
	}
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	c := coin(m, 1, 1)
	low := must(Uniform(m, 1, 2))
	ten := Certain(m, 10)

	s := must(Switch(c, map[string]Var[int]{"H": low, "T": ten}))
	assert.Equal(t, map[string]string{"1": "1/4", "2": "1/4", "10": "1/2"}, probs(must(Distribution(ctx, s))))

	withDefault := must(SwitchDefault(c, map[string]Var[int]{"H": low}, ten))
	assert.Equal(t, probs(must(Distribution(ctx, s))), probs(must(Distribution(ctx, withDefault))))

	missing := must(Switch(c, map[string]Var[int]{"H": low}))
	_, err := Distribution(ctx, missing)
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingCase, Code(err))

	_, err = Switch(c, map[string]Var[int]{})
	assert.True(t, IsConstruction(err))
}

func TestIf_SharesDiscriminator(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d := die(m)

	// The branch re-reads the discriminator's ancestor: only 6 can be kept.
	kept := If(Is(d, 6), d, Certain(m, 0))
	assert.Equal(t, map[string]string{"6": "1/6", "0": "5/6"}, probs(must(Distribution(ctx, kept))))
}

func TestJoint(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 3, 1)
	d := must(Uniform(m, 1, 2))

	j := must(Joint(a, d, a))
	pmf := must(Distribution(ctx, j))
	assert.Equal(t, 4, pmf.Len())
	assert.Equal(t, "3/8", pmf.P(NewTuple("H", 1, "H")).String())
	assert.True(t, pmf.P(NewTuple("H", 1, "T")).IsZero())

	_, err := Joint()
	assert.True(t, IsConstruction(err))
}

func TestOperators(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d := die(m)
	three := Certain(m, 3)

	tests := []struct {
		name string
		ev   Var[bool]
		want string
	}{
		{"eq", Eq(d, three), "1/6"},
		{"ne", Ne(d, three), "5/6"},
		{"lt", Lt(d, three), "1/3"},
		{"le", Le(d, three), "1/2"},
		{"gt", Gt(d, three), "1/2"},
		{"ge", Ge(d, three), "2/3"},
		{"in", IsAnyOf(d, 1, 6), "1/3"},
		{"not in", IsNoneOf(d, 1, 6), "2/3"},
		{"not", Not(Is(d, 1)), "5/6"},
		{"or", Or(Is(d, 1), Is(d, 2)), "1/3"},
		{"and", And(Gt(d, three), Lt(d, Certain(m, 6))), "1/3"},
		{"xor", Xor(Gt(d, three), Is(d, 6)), "1/3"},
		{"neg", Is(Neg(d), -6), "1/6"},
		{"mul", Is(Mul(d, d), 36), "1/6"},
		{"min", Is(Min(d, three), 3), "2/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := P(ctx, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	_, err := Distribution(ctx, Div(d, Sub(d, d)))
	require.Error(t, err)
	assert.Equal(t, ErrCodeArithmetic, Code(err))

	half := must(Distribution(ctx, Div(Mul(d, Certain(m, 2)), d)))
	assert.Equal(t, []int{2}, half.Values())
}

func TestTypeMismatch(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	_, err := Distribution(ctx, Typed[string](d))
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	unhashable := Apply("slice", func(args []any) (any, error) {
		return []int{args[0].(int)}, nil
	}, d)
	_, err = Distribution(ctx, unhashable)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	failing := MapErr(d, func(int) (int, error) { return 0, errors.New("boom") })
	_, err = Distribution(ctx, failing)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.ErrorContains(t, err, "boom")
}

func TestWeights(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 3, 1)

	w, err := Weights(ctx, Given(a, Is(a, "H")))
	require.NoError(t, err)
	require.Len(t, w, 1)
	assert.Equal(t, "H", w[0].Value)
	assert.Equal(t, "3", w[0].Weight.String())

	none, err := Weights(ctx, Given(a, Is(a, "X")))
	assert.True(t, errors.Is(err, ErrImpossibleCondition))
	assert.Equal(t, ErrCodeImpossibleCondition, Code(err))
	assert.Nil(t, none)

	// Evidence false on some paths only keeps the surviving weights.
	d := die(m)
	partial, err := Weights(ctx, Given(d, Gt(d, Certain(m, 4))))
	require.NoError(t, err)
	require.Len(t, partial, 2)
	assert.Equal(t, 5, partial[0].Value)
	assert.True(t, partial[1].Weight.IsOne())
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	pmf := must(Distribution(ctx, die(m)))

	assert.InDelta(t, 3.5, MeanF(pmf), 1e-12)
	assert.InDelta(t, 35.0/12.0, VarianceF(pmf), 1e-12)
	assert.InDelta(t, math.Sqrt(35.0/12.0), StdDevF(pmf), 1e-12)
	assert.Equal(t, "7/2", Mean(pmf).String())
	assert.InDelta(t, math.Log2(6), pmf.Entropy(), 1e-12)
	assert.InDelta(t, math.Log2(6), pmf.InformationOf(1), 1e-12)
	assert.True(t, math.IsInf(pmf.InformationOf(7), 1))
	assert.Len(t, pmf.Mode(), 6)

	cdf := CDF(pmf)
	require.Len(t, cdf, 6)
	assert.Equal(t, "1/2", cdf[2].P.String())
	assert.True(t, cdf[5].P.IsOne())

	loaded := must(Distribution(ctx, coin(m, 3, 1)))
	assert.Equal(t, []string{"H"}, loaded.Mode())
}

func TestInformation(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 1, 1)
	b := coin(m, 1, 1)
	same := Map(a, func(s string) string { return s })

	h, err := JointEntropy(ctx, []Node{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, h, 1e-12)

	h, err = JointEntropy(ctx, []Node{a, same})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, h, 1e-12)

	ce, err := CondEntropy(ctx, a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ce, 1e-12)

	ce, err = CondEntropy(ctx, a, same)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ce, 1e-12)

	mi, err := MutualInformation(ctx, a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mi, 1e-12)

	mi, err = MutualInformation(ctx, a, same)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mi, 1e-12)

	_, err = JointEntropy(ctx, nil)
	assert.True(t, IsConstruction(err))
}

func TestLR(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d := die(m)

	// P(even | d > 3) = 2/3, P(even | d <= 3) = 1/3.
	even := Map(d, func(v int) bool { return v%2 == 0 })
	r, err := LR(ctx, even, Gt(d, Certain(m, 3)))
	require.NoError(t, err)
	assert.Equal(t, "2", r.String())

	// Hypotheses are conjoined: d > 2 and d < 6 keeps 3, 4 and 5.
	r, err = LR(ctx, even, Gt(d, Certain(m, 2)), Lt(d, Certain(m, 6)))
	require.NoError(t, err)
	assert.Equal(t, "1/2", r.String())

	_, err = LR(ctx, even, Le(d, Certain(m, 6)))
	assert.True(t, errors.Is(err, ErrImpossibleCondition))

	_, err = LR(ctx, Is(d, 6), Is(d, 6))
	assert.Equal(t, ErrCodeArithmetic, Code(err))

	_, err = LR(ctx, even)
	assert.True(t, IsConstruction(err))
}

func TestMixture(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	fair := coin(m, 1, 1)
	loaded := coin(m, 3, 1)

	mix, err := Mixture(fair, loaded)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"H": "5/8", "T": "3/8"}, probs(must(Distribution(ctx, mix))))

	// Components with disjoint supports keep every value.
	mix2 := must(Mixture(Certain(m, 1), must(Uniform(m, 2, 3))))
	assert.Equal(t, map[string]string{"1": "1/2", "2": "1/4", "3": "1/4"}, probs(must(Distribution(ctx, mix2))))

	_, err = Mixture[int]()
	assert.True(t, IsConstruction(err))
}

func TestReduce(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	plus := func(a, b int) int { return a + b }

	sum := must(Reduce(plus, die(m), die(m)))
	assert.Equal(t, "1/6", must(P(ctx, Is(sum, 7))).String())

	d := die(m)
	tripled := must(Reduce(plus, d, d, d))
	assert.Equal(t, map[string]string{"3": "1/6", "6": "1/6", "9": "1/6", "12": "1/6", "15": "1/6", "18": "1/6"},
		probs(must(Distribution(ctx, tripled))))

	single := must(Reduce(plus, d))
	assert.Equal(t, d.ID(), single.ID())

	_, err := Reduce[int](plus)
	assert.True(t, IsConstruction(err))
}

func TestPMF_SortedAndString(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	x := must(FromValues(m, 10, 2, 2))

	pmf := must(Distribution(ctx, x))
	assert.Equal(t, []int{10, 2}, pmf.Values())

	sorted := Sorted(pmf)
	assert.Equal(t, []int{2, 10}, sorted.Values())
	assert.Equal(t, " 2 : 2/3\n10 : 1/3\n", sorted.String())
	assert.Equal(t, "2", sorted.Weight(2).String())
}

func TestDeepChain(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	x := die(m)
	for i := 0; i < 20000; i++ {
		x = Map(x, func(v int) int { return v + 1 })
	}

	pmf, err := Distribution(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, "1/6", pmf.P(20006).String())
}
