package config

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statues/pkg/engine"
)

func TestCompileFunction(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		params []string
		args   []any
		want   any
	}{
		{name: "sum", expr: "x + y", args: []any{int64(2), int64(3)}, want: int64(5)},
		{name: "float division", expr: "x / y", args: []any{int64(1), int64(4)}, want: 0.25},
		{name: "comparison", expr: "x == y", args: []any{"H", "H"}, want: true},
		{name: "named params", expr: "a * b", params: []string{"a", "b"}, args: []any{int64(6), int64(7)}, want: int64(42)},
		{name: "conditional", expr: "'big' if x > 3 else 'small'", args: []any{int64(5)}, want: "big"},
		{name: "none", expr: "None", args: []any{int64(1)}, want: nil},
		{
			name: "tuple result",
			expr: "(x, x * 2)",
			args: []any{int64(3)},
			want: engine.NewTuple(int64(3), int64(6)),
		},
		{
			name: "list becomes tuple",
			expr: "[y, x]",
			args: []any{int64(1), "a"},
			want: engine.NewTuple("a", int64(1)),
		},
		{
			name: "tuple argument",
			expr: "x[0] + x[1]",
			args: []any{engine.NewTuple(int64(2), int64(5))},
			want: int64(7),
		},
		{name: "builtin", expr: "max(x, y, z)", args: []any{int64(1), int64(9), int64(4)}, want: int64(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := CompileFunction(tt.name, tt.expr, tt.params, len(tt.args))
			require.NoError(t, err)

			got, err := fn.Call(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFunction_Errors(t *testing.T) {
	_, err := CompileFunction("empty", "  ", nil, 1)
	assert.Error(t, err)

	_, err = CompileFunction("syntax", "x +", nil, 1)
	assert.Error(t, err)

	_, err = CompileFunction("arity", "a + b", []string{"a"}, 2)
	assert.Error(t, err)

	fn, err := CompileFunction("zero", "x / y", nil, 2)
	require.NoError(t, err)
	_, err = fn.Call([]any{int64(1), int64(0)})
	assert.Error(t, err)

	fn, err = CompileFunction("dict", "{'a': x}", nil, 1)
	require.NoError(t, err)
	_, err = fn.Call([]any{int64(1)})
	assert.Error(t, err, "dicts are not valid outcomes")
}

func TestFunction_StepLimit(t *testing.T) {
	fn, err := CompileFunction("loop", "[i for i in range(x) for j in range(x)]", nil, 1)
	require.NoError(t, err)

	_, err = fn.Call([]any{int64(100000)})
	assert.Error(t, err)
}

func TestFunction_ConcurrentCalls(t *testing.T) {
	fn, err := CompileFunction("square", "x * x", nil, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]any, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = fn.Call([]any{int64(i)})
		}()
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, int64(i*i), r)
	}
}

func TestDefaultParams(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, DefaultParams(2))
	assert.Equal(t, []string{"x", "y", "z", "u", "v", "w"}, DefaultParams(6))
	assert.Equal(t, []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6"}, DefaultParams(7))
}

func TestNormalize(t *testing.T) {
	got, err := normalize([]any{1, 2.5, "a", true, nil})
	require.NoError(t, err)
	assert.Equal(t, engine.NewTuple(int64(1), 2.5, "a", true, nil), got)

	_, err = normalize(map[string]any{"a": 1})
	assert.Error(t, err)

	long := make([]any, engine.MaxJointArity+1)
	_, err = normalize(long)
	assert.Error(t, err)
}

func TestNormalize_UnsignedRange(t *testing.T) {
	got, err := normalize(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)

	_, err = normalize(uint64(math.MaxInt64) + 1)
	assert.ErrorContains(t, err, "out of range")

	if math.MaxUint > math.MaxInt64 {
		_, err = normalize(^uint(0))
		assert.ErrorContains(t, err, "out of range")
	}

	_, err = normalize([]any{uint64(math.MaxUint64)})
	assert.Error(t, err)
}
