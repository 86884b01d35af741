package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinsYAML = `
name: coins
representation: rational
limits: {max_paths: 1000000, timeout: 30s}
variables:
  a:    {atomic: {H: 3, T: 1}}
  b:    {uniform: [H, T]}
  same: {expr: "x == y", args: [a, b]}
  pick: {switch: same, cases: {"true": a}, default: b}
  post: {given: a, evidence: [same]}
queries:
  - {name: p_same, target: same, kind: probability}
  - {name: post,   target: post, kind: distribution}
  - {name: mc,     target: a,    kind: sample, trials: 1000, seed: 7}
`

const coinsCUE = `
name:           "coins"
representation: "rational"
limits: {max_paths: 1000000, timeout: "30s"}
variables: {
	a: atomic: {H: 3, T: 1}
	b: uniform: ["H", "T"]
	same: {expr: "x == y", args: ["a", "b"]}
	pick: {switch: "same", cases: {"true": "a"}, default: "b"}
	post: {given: "a", evidence: ["same"]}
}
queries: [
	{name: "p_same", target: "same", kind: "probability"},
	{name: "post", target: "post", kind: "distribution"},
	{name: "mc", target: "a", kind: "sample", trials: 1000, seed: 7},
]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadErrors(t *testing.T, err error) []ValidationError {
	t.Helper()
	var le *LoadError
	require.True(t, errors.As(err, &le), "expected *LoadError, got %v", err)
	return le.Errors
}

func TestLoader_Formats(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader()

	for name, content := range map[string]string{
		"coins.yaml": coinsYAML,
		"coins.cue":  coinsCUE,
	} {
		t.Run(name, func(t *testing.T) {
			spec, err := loader.Load(ctx, writeFile(t, name, content))
			require.NoError(t, err)

			assert.Equal(t, "coins", spec.Name)
			assert.Equal(t, "rational", spec.Representation)
			assert.EqualValues(t, 1000000, spec.Limits.MaxPaths)
			assert.Equal(t, 30*time.Second, time.Duration(spec.Limits.Timeout))
			assert.Len(t, spec.Variables, 5)
			assert.Equal(t, "x == y", spec.Variables["same"].Expr)
			assert.Equal(t, []string{"a", "b"}, spec.Variables["same"].Args)
			assert.Equal(t, "a", spec.Variables["pick"].Cases["true"])
			assert.Equal(t, []string{"same"}, spec.Variables["post"].Evidence)

			require.Len(t, spec.Queries, 3)
			assert.Equal(t, KindSample, spec.Queries[2].Kind)
			assert.Equal(t, 1000, spec.Queries[2].Trials)
			require.NotNil(t, spec.Queries[2].Seed)
			assert.EqualValues(t, 7, *spec.Queries[2].Seed)
		})
	}
}

func TestLoader_JSON(t *testing.T) {
	spec, err := NewLoader().Load(context.Background(), writeFile(t, "m.json", `{
		"name": "die",
		"variables": {"d": {"uniform": [1, 2, 3, 4, 5, 6]}},
		"queries": [{"name": "d", "target": "d", "kind": "distribution"}]
	}`))
	require.NoError(t, err)
	assert.Len(t, spec.Variables["d"].Uniform, 6)
}

func TestLoader_UnsupportedExtension(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), writeFile(t, "model.toml", "name = 'x'"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestLoader_UnknownField(t *testing.T) {
	_, err := NewLoader().Parse(context.Background(), []byte(`
name: m
variables:
  a: {uniform: [1, 2], colour: red}
`), FormatYAML, "m.yaml")
	errs := loadErrors(t, err)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "colour")
}

func TestLoader_CUESchemaError(t *testing.T) {
	_, err := NewLoader().Parse(context.Background(), []byte(`
name: "m"
representation: "binary"
variables: a: uniform: [1, 2]
`), FormatCUE, "m.cue")
	errs := loadErrors(t, err)
	require.NotEmpty(t, errs)

	var found bool
	for _, e := range errs {
		if strings.Contains(e.Path+e.Message, "representation") {
			found = true
			assert.Positive(t, e.Line)
		}
	}
	assert.True(t, found, "no representation error in %v", errs)
}

func TestLoader_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		path string
		want string
	}{
		{
			name: "missing name",
			yaml: "variables: {a: {uniform: [1]}}",
			path: "name",
			want: "is required",
		},
		{
			name: "no variables",
			yaml: "name: m\nvariables: {}",
			path: "variables",
			want: "at least",
		},
		{
			name: "bad representation",
			yaml: "name: m\nrepresentation: binary\nvariables: {a: {uniform: [1]}}",
			path: "representation",
			want: "one of",
		},
		{
			name: "no definition",
			yaml: "name: m\nvariables: {a: {description: nothing}}",
			path: "variables.a",
			want: "no definition",
		},
		{
			name: "two definitions",
			yaml: "name: m\nvariables: {a: {uniform: [1], certain: 2}}",
			path: "variables.a",
			want: "conflicting definitions: uniform, certain",
		},
		{
			name: "unknown argument",
			yaml: "name: m\nvariables: {a: {expr: 'x + 1', args: [b]}}",
			path: "variables.a.args[0]",
			want: `unknown variable "b"`,
		},
		{
			name: "expr without args",
			yaml: "name: m\nvariables: {a: {expr: '1'}}",
			path: "variables.a.args",
			want: "at least one argument",
		},
		{
			name: "times with two args",
			yaml: "name: m\nvariables: {d: {uniform: [1, 2]}, s: {times: 3, expr: 'x + y', args: [d, d]}}",
			path: "variables.s.args",
			want: "exactly one argument",
		},
		{
			name: "switch without cases",
			yaml: "name: m\nvariables: {d: {uniform: [1, 2]}, s: {switch: d}}",
			path: "variables.s.cases",
			want: "cases or a default",
		},
		{
			name: "sample without trials",
			yaml: "name: m\nvariables: {d: {uniform: [1, 2]}}\nqueries: [{name: q, target: d, kind: sample}]",
			path: "queries[0].trials",
			want: "positive number of trials",
		},
		{
			name: "value on distribution",
			yaml: "name: m\nvariables: {d: {uniform: [1, 2]}}\nqueries: [{name: q, target: d, kind: distribution, value: 1}]",
			path: "queries[0].value",
			want: "only valid with probability",
		},
		{
			name: "duplicate query",
			yaml: "name: m\nvariables: {d: {uniform: [1, 2]}}\nqueries: [{name: q, target: d, kind: cases}, {name: q, target: d, kind: cases}]",
			path: "queries[1].name",
			want: "duplicate",
		},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse(context.Background(), []byte(tt.yaml), FormatYAML, "m.yaml")
			errs := loadErrors(t, err)

			var found bool
			for _, e := range errs {
				if e.Path == tt.path && strings.Contains(e.Message, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "no error at %s containing %q in %v", tt.path, tt.want, errs)
		})
	}
}

func TestValidationError_String(t *testing.T) {
	assert.Equal(t, "m.cue:3:5: variables.a: bad", ValidationError{
		File: "m.cue", Line: 3, Column: 5, Path: "variables.a", Message: "bad",
	}.String())
	assert.Equal(t, "queries[0]: bad", ValidationError{Path: "queries[0]", Message: "bad"}.String())
	assert.Equal(t, "bad", ValidationError{Message: "bad"}.String())

	err := &LoadError{Errors: []ValidationError{{Message: "a"}, {Message: "b"}}}
	assert.Equal(t, "invalid model: a; b", err.Error())
}
