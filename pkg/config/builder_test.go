package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statues/pkg/engine"
)

func build(t *testing.T, yaml string) *Built {
	t.Helper()
	ctx := context.Background()
	spec, err := NewLoader().Parse(ctx, []byte(yaml), FormatYAML, "test.yaml")
	require.NoError(t, err)
	built, err := Build(ctx, spec)
	require.NoError(t, err)
	return built
}

func run(t *testing.T, b *Built, name string) (*Result, error) {
	t.Helper()
	for _, qs := range b.Spec.Queries {
		if qs.Name != name {
			continue
		}
		q, err := b.Query(qs)
		require.NoError(t, err)
		v, err := q.Run(context.Background())
		if err != nil {
			return nil, err
		}
		return v.(*Result), nil
	}
	t.Fatalf("no query %s", name)
	return nil, nil
}

func mustRun(t *testing.T, b *Built, name string) *Result {
	t.Helper()
	res, err := run(t, b, name)
	require.NoError(t, err)
	return res
}

func probabilities(res *Result) map[any]string {
	out := make(map[any]string, len(res.Outcomes))
	for _, o := range res.Outcomes {
		out[o.Value] = o.Probability
	}
	return out
}

func TestBuild_Coins(t *testing.T) {
	b := build(t, coinsYAML)

	assert.Equal(t, []string{"a", "b", "pick", "post", "same"}, b.Names())
	assert.Len(t, b.Roots(), 5)

	assert.Equal(t, "1/2", mustRun(t, b, "p_same").Probability)
	assert.Equal(t, map[any]string{"H": "3/4", "T": "1/4"}, probabilities(mustRun(t, b, "post")))

	mc := mustRun(t, b, "mc")
	require.Len(t, mc.Samples, 1000)
	for _, s := range mc.Samples {
		assert.Contains(t, []any{"H", "T"}, s)
	}
	assert.EqualValues(t, 1000, mc.Stats.Samples)
}

func TestBuild_BatchQueries(t *testing.T) {
	b := build(t, coinsYAML)

	queries, err := b.Queries()
	require.NoError(t, err)
	results, err := engine.Batch(context.Background(), 2, queries...)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, b.Spec.Queries[i].Name, r.Name)
		assert.Equal(t, r.Name, r.Value.(*Result).Query)
	}
}

func TestBuild_Dice(t *testing.T) {
	b := build(t, `
name: dice
variables:
  d1:  {uniform: [1, 2, 3, 4, 5, 6]}
  d2:  {uniform: [1, 2, 3, 4, 5, 6]}
  sum: {expr: "x + y", args: [d1, d2]}
  big: {expr: "s > 9", params: [s], args: [sum]}
  three: {times: 3, expr: "x + y", args: [d1]}
queries:
  - {name: seven,  target: sum,   kind: probability, value: 7}
  - {name: big,    target: big,   kind: probability}
  - {name: sum,    target: sum,   kind: distribution}
  - {name: cases,  target: sum,   kind: cases}
  - {name: min3,   target: three, kind: probability, value: 3}
  - {name: max3,   target: three, kind: probability, value: 18}
  - {name: given,  target: d1,    kind: distribution, given: [big]}
`)

	assert.Equal(t, "1/6", mustRun(t, b, "seven").Probability)
	assert.Equal(t, "1/6", mustRun(t, b, "big").Probability)

	sum := mustRun(t, b, "sum")
	require.Len(t, sum.Outcomes, 11)
	assert.Equal(t, int64(2), sum.Outcomes[0].Value)
	assert.Equal(t, "1/36", sum.Outcomes[0].Probability)
	assert.Equal(t, int64(12), sum.Outcomes[10].Value)

	assert.EqualValues(t, 36, mustRun(t, b, "cases").Count)

	assert.Equal(t, "1/216", mustRun(t, b, "min3").Probability)
	assert.Equal(t, "1/216", mustRun(t, b, "max3").Probability)

	// sum > 9 leaves (4,6) (5,5) (5,6) (6,4) (6,5) (6,6).
	assert.Equal(t, map[any]string{
		int64(4): "1/6",
		int64(5): "1/3",
		int64(6): "1/2",
	}, probabilities(mustRun(t, b, "given")))
}

func TestBuild_AtomicKeyTypes(t *testing.T) {
	b := build(t, `
name: keys
variables:
  n: {atomic: {"10": 2, "9": 1, "1": 1}, type: int}
  f: {atomic: {"0.5": 1, "1.5": 3}, type: float}
  ok: {atomic: {"true": 1, "false": 3}, type: bool}
queries:
  - {name: n,  target: n,  kind: distribution}
  - {name: f,  target: f,  kind: distribution}
  - {name: ok, target: ok, kind: probability}
`)

	n := mustRun(t, b, "n")
	require.Len(t, n.Outcomes, 3)
	assert.Equal(t, []any{int64(1), int64(9), int64(10)},
		[]any{n.Outcomes[0].Value, n.Outcomes[1].Value, n.Outcomes[2].Value})
	assert.Equal(t, "1/2", n.Outcomes[2].Probability)

	assert.Equal(t, map[any]string{0.5: "1/4", 1.5: "3/4"}, probabilities(mustRun(t, b, "f")))
	assert.Equal(t, "1/4", mustRun(t, b, "ok").Probability)
}

func TestBuild_Representations(t *testing.T) {
	b := build(t, `
name: float
representation: float
variables:
  rain: {bernoulli: 0.25}
queries:
  - {name: rain, target: rain, kind: probability}
`)
	res := mustRun(t, b, "rain")
	assert.Equal(t, "float", res.Representation)
	assert.Equal(t, "0.25", res.Probability)

	b = build(t, `
name: decimal
representation: decimal
variables:
  draw: {entries: [{value: red, weight: "0.1"}, {value: blue, weight: "0.9"}]}
queries:
  - {name: red, target: draw, kind: probability, value: red}
`)
	res = mustRun(t, b, "red")
	assert.Equal(t, "decimal", res.Representation)
	assert.Equal(t, "0.1", res.Probability)

	b = build(t, `
name: rational
variables:
  rain: {bernoulli: "1/3"}
queries:
  - {name: rain, target: rain, kind: probability}
`)
	assert.Equal(t, "1/3", mustRun(t, b, "rain").Probability)
}

func TestBuild_JointAndSwitch(t *testing.T) {
	b := build(t, `
name: js
variables:
  coin: {uniform: [H, T]}
  die:  {uniform: [1, 2]}
  both: {joint: [coin, die]}
  six:  {certain: 6}
  pick: {switch: coin, cases: {H: die}, default: six}
  strict: {switch: die, cases: {"1": coin}}
queries:
  - {name: both,   target: both,   kind: distribution}
  - {name: pick,   target: pick,   kind: distribution}
  - {name: strict, target: strict, kind: distribution}
  - {name: w,      target: pick,   kind: weights}
`)

	both := mustRun(t, b, "both")
	require.Len(t, both.Outcomes, 4)
	assert.Equal(t, engine.NewTuple("H", int64(1)), both.Outcomes[0].Value)
	assert.Equal(t, "1/4", both.Outcomes[0].Probability)

	assert.Equal(t, map[any]string{
		int64(1): "1/4",
		int64(2): "1/4",
		int64(6): "1/2",
	}, probabilities(mustRun(t, b, "pick")))

	w := mustRun(t, b, "w")
	require.NotEmpty(t, w.Outcomes)
	for _, o := range w.Outcomes {
		assert.NotEmpty(t, o.Weight)
		assert.Empty(t, o.Probability)
	}

	_, err := run(t, b, "strict")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeMissingCase, engine.Code(err))
}

func TestBuild_TruthQueries(t *testing.T) {
	b := build(t, `
name: truth
variables:
  d: {uniform: [1, 2, 3]}
  pos: {expr: "x > 0", args: [d]}
  four: {expr: "x == 4", args: [d]}
queries:
  - {name: pos_true,      target: pos,  kind: "true"}
  - {name: four_true,     target: four, kind: "true"}
  - {name: four_feasible, target: four, kind: feasible}
  - {name: pos_feasible,  target: pos,  kind: feasible}
  - {name: impossible,    target: d,    kind: distribution, given: [four]}
`)

	assert.True(t, *mustRun(t, b, "pos_true").Truth)
	assert.False(t, *mustRun(t, b, "four_true").Truth)
	assert.False(t, *mustRun(t, b, "four_feasible").Truth)
	assert.True(t, *mustRun(t, b, "pos_feasible").Truth)

	_, err := run(t, b, "impossible")
	assert.True(t, errors.Is(err, engine.ErrImpossibleCondition))
}

func TestBuild_Cycle(t *testing.T) {
	spec := &ModelSpec{
		Name: "cycle",
		Variables: map[string]VariableSpec{
			"a": {Expr: "x + 1", Args: []string{"b"}},
			"b": {Expr: "x + 1", Args: []string{"c"}},
			"c": {Expr: "x + 1", Args: []string{"a"}},
		},
	}
	_, err := Build(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrCyclicDependency))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")

	spec.Variables["t"] = VariableSpec{Times: 2, Expr: "x + y", Args: []string{"t"}}
	_, err = Build(context.Background(), spec)
	assert.True(t, errors.Is(err, engine.ErrCyclicDependency))
}

func TestBuild_InvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		v    VariableSpec
		is   error
	}{
		{name: "duplicate uniform", v: VariableSpec{Uniform: []any{1, 1}}, is: engine.ErrInvalidDistribution},
		{name: "zero weight", v: VariableSpec{Atomic: map[string]any{"a": 0}}, is: engine.ErrInvalidDistribution},
		{name: "bernoulli above one", v: VariableSpec{Bernoulli: "3/2"}, is: engine.ErrInvalidDistribution},
		{name: "bad weight", v: VariableSpec{Atomic: map[string]any{"a": "lots"}}},
		{name: "bad key", v: VariableSpec{Atomic: map[string]any{"a": 1}, Type: "int"}},
		{name: "bad expr", v: VariableSpec{Expr: "x +", Args: []string{"base"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &ModelSpec{
				Name: "bad",
				Variables: map[string]VariableSpec{
					"base": {Certain: 1},
					"v":    tt.v,
				},
			}
			_, err := Build(context.Background(), spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "variable v")
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	assert.Negative(t, compareValues(nil, int64(0)))
	assert.Negative(t, compareValues(int64(2), 2.5))
	assert.Negative(t, compareValues(int64(9), int64(10)))
	assert.Negative(t, compareValues(false, true))
	assert.Negative(t, compareValues(true, "a"))
	assert.Negative(t, compareValues("a", "b"))
	assert.Negative(t, compareValues(engine.NewTuple(int64(1), "b"), engine.NewTuple(int64(2), "a")))
	assert.Zero(t, compareValues("a", "a"))
}
