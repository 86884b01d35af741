package config

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openfroyo/statues/pkg/engine"
	"github.com/openfroyo/statues/pkg/prob"
	"github.com/openfroyo/statues/pkg/telemetry"
)

// Built is a model file turned into engine variables.
type Built struct {
	Spec  *ModelSpec
	Model *engine.Model

	vars map[string]engine.Var[any]
}

// Var returns the variable with the given name.
func (b *Built) Var(name string) (engine.Var[any], bool) {
	v, ok := b.vars[name]
	return v, ok
}

// Names returns the variable names in sorted order.
func (b *Built) Names() []string {
	names := make([]string, 0, len(b.vars))
	for name := range b.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roots returns every variable, in name order, for graph rendering.
func (b *Built) Roots() []engine.Node {
	names := b.Names()
	roots := make([]engine.Node, len(names))
	for i, name := range names {
		roots[i] = b.vars[name]
	}
	return roots
}

// builder defines variables depth first so that times folds, which
// evaluate their argument while the model is built, see defined inputs.
type builder struct {
	ctx   context.Context
	spec  *ModelSpec
	model *engine.Model
	decls map[string]engine.Var[any]
	state map[string]int
	stack []string
}

const (
	unvisited = iota
	visiting
	defined
)

// Build creates the engine model described by spec. Variables may refer to
// each other in any order; a reference cycle fails with
// engine.ErrCyclicDependency.
func Build(ctx context.Context, spec *ModelSpec) (*Built, error) {
	rep, err := prob.Lookup(spec.Representation)
	if err != nil {
		return nil, err
	}

	var opts []engine.Option
	if spec.Limits.MaxPaths > 0 {
		opts = append(opts, engine.WithMaxPaths(spec.Limits.MaxPaths))
	}
	if spec.Limits.Timeout > 0 {
		opts = append(opts, engine.WithTimeout(time.Duration(spec.Limits.Timeout)))
	}
	if spec.Limits.MaxSampleTries > 0 {
		opts = append(opts, engine.WithMaxSampleTries(spec.Limits.MaxSampleTries))
	}

	b := &builder{
		ctx:   ctx,
		spec:  spec,
		model: engine.NewModel(rep, opts...),
		decls: make(map[string]engine.Var[any], len(spec.Variables)),
		state: make(map[string]int, len(spec.Variables)),
	}

	names := make([]string, 0, len(spec.Variables))
	for name := range spec.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b.decls[name] = engine.Declare[any](b.model, name)
	}
	for _, name := range names {
		if err := b.ensure(name); err != nil {
			return nil, err
		}
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.SetModelNodes(spec.Name, b.model.Len())
	}
	telemetry.FromContext(ctx).NewComponentLogger("config").
		WithModel(spec.Name).
		WithField("representation", rep.Name()).
		WithField("nodes", b.model.Len()).
		Debug("model built")

	return &Built{Spec: spec, Model: b.model, vars: b.decls}, nil
}

func (b *builder) ensure(name string) error {
	switch b.state[name] {
	case defined:
		return nil
	case visiting:
		start := 0
		for i, n := range b.stack {
			if n == name {
				start = i
			}
		}
		cycle := append(append([]string{}, b.stack[start:]...), name)
		return engine.NewConstructionError(engine.ErrCodeCyclicDependency,
			"variables form a cycle: "+strings.Join(cycle, " -> "), nil).WithNode(name)
	}

	b.state[name] = visiting
	b.stack = append(b.stack, name)

	spec := b.spec.Variables[name]
	for _, dep := range dependencies(spec) {
		if err := b.ensure(dep); err != nil {
			return err
		}
	}

	def, err := b.define(name, spec)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	if err := engine.Define(b.decls[name], def); err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}

	b.stack = b.stack[:len(b.stack)-1]
	b.state[name] = defined
	return nil
}

// dependencies lists the variables spec refers to, in declaration order.
func dependencies(spec VariableSpec) []string {
	var deps []string
	deps = append(deps, spec.Args...)
	if spec.Switch != "" {
		deps = append(deps, spec.Switch)
		keys := make([]string, 0, len(spec.Cases))
		for k := range spec.Cases {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			deps = append(deps, spec.Cases[k])
		}
		if spec.Default != "" {
			deps = append(deps, spec.Default)
		}
	}
	if spec.Given != "" {
		deps = append(deps, spec.Given)
	}
	deps = append(deps, spec.Evidence...)
	deps = append(deps, spec.Joint...)
	return deps
}

func (b *builder) define(name string, spec VariableSpec) (engine.Var[any], error) {
	m := b.model
	rep := m.Representation()

	switch forms := definitionForms(spec); {
	case len(forms) != 1:
		return engine.Var[any]{}, fmt.Errorf("needs exactly one definition, got %d", len(forms))

	case spec.Atomic != nil:
		entries := make([]engine.Entry[any], 0, len(spec.Atomic))
		for key, w := range spec.Atomic {
			val, err := parseKey(key, spec.Type)
			if err != nil {
				return engine.Var[any]{}, err
			}
			weight, err := parseWeight(rep, w)
			if err != nil {
				return engine.Var[any]{}, fmt.Errorf("weight of %s: %w", key, err)
			}
			entries = append(entries, engine.Entry[any]{Value: val, Weight: weight})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return compareValues(entries[i].Value, entries[j].Value) < 0
		})
		return engine.Atomic(m, entries...)

	case spec.Entries != nil:
		entries := make([]engine.Entry[any], len(spec.Entries))
		for i, e := range spec.Entries {
			val, err := normalize(e.Value)
			if err != nil {
				return engine.Var[any]{}, fmt.Errorf("entries[%d]: %w", i, err)
			}
			weight, err := parseWeight(rep, e.Weight)
			if err != nil {
				return engine.Var[any]{}, fmt.Errorf("entries[%d]: %w", i, err)
			}
			entries[i] = engine.Entry[any]{Value: val, Weight: weight}
		}
		return engine.Atomic(m, entries...)

	case spec.Uniform != nil:
		vals := make([]any, len(spec.Uniform))
		for i, u := range spec.Uniform {
			val, err := normalize(u)
			if err != nil {
				return engine.Var[any]{}, fmt.Errorf("uniform[%d]: %w", i, err)
			}
			vals[i] = val
		}
		return engine.Uniform(m, vals...)

	case spec.Certain != nil:
		val, err := normalize(spec.Certain)
		if err != nil {
			return engine.Var[any]{}, err
		}
		return engine.Certain(m, val), nil

	case spec.Bernoulli != nil:
		p, err := parseWeight(rep, spec.Bernoulli)
		if err != nil {
			return engine.Var[any]{}, err
		}
		v, err := engine.Bernoulli(m, p)
		if err != nil {
			return engine.Var[any]{}, err
		}
		return engine.Untyped(v), nil

	case spec.Times > 0:
		return b.defineTimes(name, spec)

	case spec.Expr != "":
		fn, err := CompileFunction(name, spec.Expr, spec.Params, len(spec.Args))
		if err != nil {
			return engine.Var[any]{}, err
		}
		return engine.Apply[any]("expr", fn.Call, b.nodes(spec.Args)...), nil

	case spec.Switch != "":
		disc := engine.Map(b.decls[spec.Switch], func(v any) string { return fmt.Sprint(v) })
		cases := make(map[string]engine.Var[any], len(spec.Cases))
		for k, target := range spec.Cases {
			cases[k] = b.decls[target]
		}
		if spec.Default != "" {
			return engine.SwitchDefault(disc, cases, b.decls[spec.Default])
		}
		return engine.Switch(disc, cases)

	case spec.Given != "":
		evidence := make([]engine.Var[bool], len(spec.Evidence))
		for i, e := range spec.Evidence {
			evidence[i] = engine.Typed[bool](b.decls[e])
		}
		return engine.Given(b.decls[spec.Given], evidence...), nil

	default: // joint
		v, err := engine.Joint(b.nodes(spec.Joint)...)
		if err != nil {
			return engine.Var[any]{}, err
		}
		return engine.Untyped(v), nil
	}
}

// defineTimes folds spec.Times independent copies of the argument with the
// two-parameter expression.
func (b *builder) defineTimes(name string, spec VariableSpec) (engine.Var[any], error) {
	fn, err := CompileFunction(name, spec.Expr, spec.Params, 2)
	if err != nil {
		return engine.Var[any]{}, err
	}

	// Times runs its queries on this goroutine, so the first call error can
	// be kept in a plain variable.
	var callErr error
	op := func(x, y any) any {
		r, err := fn.Call([]any{x, y})
		if err != nil && callErr == nil {
			callErr = err
		}
		return r
	}

	v, err := engine.Times(b.ctx, b.decls[spec.Args[0]], spec.Times, op)
	if callErr != nil {
		return engine.Var[any]{}, callErr
	}
	return v, err
}

func (b *builder) nodes(names []string) []engine.Node {
	nodes := make([]engine.Node, len(names))
	for i, n := range names {
		nodes[i] = b.decls[n]
	}
	return nodes
}

// parseKey reads an atomic table key as typ.
func parseKey(key, typ string) (any, error) {
	switch typ {
	case "", "string":
		return key, nil
	case "int":
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q is not an int", key)
		}
		return i, nil
	case "float":
		f, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q is not a float", key)
		}
		return f, nil
	case "bool":
		v, err := strconv.ParseBool(key)
		if err != nil {
			return nil, fmt.Errorf("key %q is not a bool", key)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown key type %q", typ)
	}
}

// parseWeight converts an integer, a float or a string such as "1/3" or
// "0.25" to a weight of rep.
func parseWeight(rep prob.Representation, w any) (prob.Value, error) {
	n, err := normalize(w)
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case int64:
		return rep.FromInt(v), nil
	case float64:
		return rep.FromFloat(v)
	case string:
		return rep.Parse(v)
	default:
		return nil, fmt.Errorf("weight %v is not a number", w)
	}
}

// compareValues orders outcome values: numbers numerically, then bools,
// then strings, then anything else by printed form.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y)
		case float64:
			return cmp.Compare(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, float64(y))
		case float64:
			return cmp.Compare(x, y)
		}
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	case engine.Tuple:
		if y, ok := b.(engine.Tuple); ok {
			for i := 0; i < x.Len() && i < y.Len(); i++ {
				if c := compareValues(x.At(i), y.At(i)); c != 0 {
					return c
				}
			}
			return cmp.Compare(x.Len(), y.Len())
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case bool:
		return 2
	case string:
		return 3
	case engine.Tuple:
		return 4
	default:
		return 5
	}
}
