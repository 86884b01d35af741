package config

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"go.starlark.net/starlark"

	"github.com/openfroyo/statues/pkg/engine"
)

// DefaultMaxSteps bounds the Starlark steps of one function call.
const DefaultMaxSteps = 100000

var defaultParams = []string{"x", "y", "z", "u", "v", "w"}

// Function is a Starlark expression compiled once into a lambda and applied
// to variable values on every enumeration path.
type Function struct {
	name     string
	expr     string
	params   []string
	fn       *starlark.Function
	maxSteps uint64
}

// CompileFunction compiles expr as the body of a lambda over params. With no
// params, the first arity names of x, y, z, u, v, w are used.
func CompileFunction(name, expr string, params []string, arity int) (*Function, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if len(params) == 0 {
		params = DefaultParams(arity)
	}
	if len(params) != arity {
		return nil, fmt.Errorf("expression has %d parameters but %d arguments", len(params), arity)
	}

	src := fmt.Sprintf("f = lambda %s: (%s)\n", strings.Join(params, ", "), expr)

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print for security
		},
	}

	globals, err := starlark.ExecFile(thread, name+".star", src, nil)
	if err != nil {
		return nil, fmt.Errorf("starlark compilation failed: %w", err)
	}
	globals.Freeze()

	fn, ok := globals["f"].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("expression did not compile to a function")
	}

	return &Function{
		name:     name,
		expr:     expr,
		params:   params,
		fn:       fn,
		maxSteps: DefaultMaxSteps,
	}, nil
}

// DefaultParams returns the default parameter names for n arguments.
func DefaultParams(n int) []string {
	if n <= len(defaultParams) {
		return defaultParams[:n]
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("x%d", i)
	}
	return out
}

// String returns the source expression.
func (f *Function) String() string { return f.expr }

// Params returns the parameter names.
func (f *Function) Params() []string { return f.params }

// Call applies the function to Go values. Frozen globals make concurrent
// calls safe; each call runs on its own thread.
func (f *Function) Call(args []any) (any, error) {
	sargs := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := toStarlarkValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", f.params[i], err)
		}
		sargs[i] = v
	}

	thread := &starlark.Thread{
		Name:  f.name,
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(f.maxSteps)

	res, err := starlark.Call(thread, f.fn, sargs, nil)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	return fromStarlarkValue(res)
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case engine.Tuple:
		tuple := make(starlark.Tuple, val.Len())
		for i := range tuple {
			item, err := toStarlarkValue(val.At(i))
			if err != nil {
				return nil, err
			}
			tuple[i] = item
		}
		return tuple, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value usable as a
// variable outcome. Sequences become tuples; dicts are not comparable and
// are rejected.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case starlark.Tuple:
		return fromStarlarkSequence(val)
	case *starlark.List:
		return fromStarlarkSequence(val)
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromStarlarkSequence(seq starlark.Indexable) (engine.Tuple, error) {
	if seq.Len() > engine.MaxJointArity {
		return engine.Tuple{}, fmt.Errorf("sequence of %d items exceeds %d", seq.Len(), engine.MaxJointArity)
	}
	items := make([]any, seq.Len())
	for i := range items {
		item, err := fromStarlarkValue(seq.Index(i))
		if err != nil {
			return engine.Tuple{}, err
		}
		items[i] = item
	}
	return engine.NewTuple(items...), nil
}

// normalize converts a decoded YAML or CUE value to the canonical outcome
// types shared with Starlark results: int64, float64, string, bool, nil and
// engine.Tuple.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return normalizeUint(val)
	case float32:
		return float64(val), nil
	case *big.Int:
		if !val.IsInt64() {
			return nil, fmt.Errorf("integer %s out of range", val)
		}
		return val.Int64(), nil
	case *big.Float:
		f, _ := val.Float64()
		return f, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case []any:
		if len(val) > engine.MaxJointArity {
			return nil, fmt.Errorf("list of %d items exceeds %d", len(val), engine.MaxJointArity)
		}
		items := make([]any, len(val))
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return engine.NewTuple(items...), nil
	default:
		return nil, fmt.Errorf("unsupported value %v of type %T", v, v)
	}
}

func normalizeUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d out of range", u)
	}
	return int64(u), nil
}
