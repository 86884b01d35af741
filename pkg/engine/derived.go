package engine

import (
	"fmt"
	"strings"
)

func newNode(kind nodeKind, op string) *node {
	return &node{kind: kind, op: op, target: noNode, defaultID: noNode}
}

// Apply builds a derived node computing fn over the operands' values, in
// operand order. fn only runs once every operand is frozen on the current
// enumeration path; an error returned by fn fails the query.
func Apply[R comparable](op string, fn func(args []any) (R, error), operands ...Node) Var[R] {
	m := sameModel(operands...)
	n := newNode(kindFunc, op)
	n.operands = ids(operands)
	n.fn = func(args []any) (any, error) {
		r, err := fn(args)
		return r, err
	}
	return Var[R]{m: m, id: m.add(n)}
}

// Map builds the distribution of f applied to a.
func Map[A, R comparable](a Var[A], f func(A) R) Var[R] {
	return MapErr(a, func(x A) (R, error) { return f(x), nil })
}

// MapErr is Map for functions that can fail.
func MapErr[A, R comparable](a Var[A], f func(A) (R, error)) Var[R] {
	return Apply("map", func(args []any) (R, error) {
		x, err := arg[A](args, 0)
		if err != nil {
			var zero R
			return zero, err
		}
		return f(x)
	}, a)
}

// Map2 builds the distribution of f applied to a and b.
func Map2[A, B, R comparable](a Var[A], b Var[B], f func(A, B) R) Var[R] {
	return Map2Err(a, b, func(x A, y B) (R, error) { return f(x, y), nil })
}

// Map2Err is Map2 for functions that can fail.
func Map2Err[A, B, R comparable](a Var[A], b Var[B], f func(A, B) (R, error)) Var[R] {
	return apply2("map2", a, b, f)
}

func apply2[A, B, R comparable](op string, a Var[A], b Var[B], f func(A, B) (R, error)) Var[R] {
	return Apply(op, func(args []any) (R, error) {
		var zero R
		x, err := arg[A](args, 0)
		if err != nil {
			return zero, err
		}
		y, err := arg[B](args, 1)
		if err != nil {
			return zero, err
		}
		return f(x, y)
	}, a, b)
}

// Map3 builds the distribution of f applied to a, b and c.
func Map3[A, B, C, R comparable](a Var[A], b Var[B], c Var[C], f func(A, B, C) R) Var[R] {
	return Apply("map3", func(args []any) (R, error) {
		var zero R
		x, err := arg[A](args, 0)
		if err != nil {
			return zero, err
		}
		y, err := arg[B](args, 1)
		if err != nil {
			return zero, err
		}
		z, err := arg[C](args, 2)
		if err != nil {
			return zero, err
		}
		return f(x, y, z), nil
	}, a, b, c)
}

func arg[T any](args []any, i int) (T, error) {
	v, ok := cast[T](args[i])
	if !ok {
		var zero T
		return zero, NewEvaluationError(ErrCodeTypeMismatch,
			fmt.Sprintf("argument %d: expected %T, got %T", i, zero, args[i]), nil)
	}
	return v, nil
}

// MaxJointArity bounds the number of components of a Tuple.
const MaxJointArity = 16

// Tuple is the value of a joint node. It is comparable, so tuples can be
// grouped by the aggregator as long as their components are.
type Tuple struct {
	n     int
	elems [MaxJointArity]any
}

// NewTuple builds a tuple. It panics beyond MaxJointArity components.
func NewTuple(vals ...any) Tuple {
	if len(vals) > MaxJointArity {
		panic(fmt.Sprintf("engine: tuple of %d components exceeds %d", len(vals), MaxJointArity))
	}
	t := Tuple{n: len(vals)}
	copy(t.elems[:], vals)
	return t
}

// Len returns the number of components.
func (t Tuple) Len() int { return t.n }

// At returns component i.
func (t Tuple) At(i int) any { return t.elems[:t.n][i] }

// Values returns a copy of the components.
func (t Tuple) Values() []any {
	out := make([]any, t.n)
	copy(out, t.elems[:t.n])
	return out
}

// String renders the tuple as "(a, b, c)".
func (t Tuple) String() string {
	parts := make([]string, t.n)
	for i := 0; i < t.n; i++ {
		parts[i] = fmt.Sprint(t.elems[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Joint builds the cartesian combination of nodes. Shared ancestors stay
// correlated; independent nodes combine with product weights.
func Joint(nodes ...Node) (Var[Tuple], error) {
	if len(nodes) == 0 || len(nodes) > MaxJointArity {
		return Var[Tuple]{}, NewConstructionError(ErrCodeValidation,
			fmt.Sprintf("joint needs between 1 and %d nodes, got %d", MaxJointArity, len(nodes)), nil)
	}
	return Apply("joint", func(args []any) (Tuple, error) {
		return NewTuple(args...), nil
	}, nodes...), nil
}

// Pair is the value of a two-component joint with static types.
type Pair[A, B comparable] struct {
	First  A
	Second B
}

// String renders the pair as "(a, b)".
func (p Pair[A, B]) String() string {
	return fmt.Sprintf("(%v, %v)", p.First, p.Second)
}

// PairOf builds the joint of a and b.
func PairOf[A, B comparable](a Var[A], b Var[B]) Var[Pair[A, B]] {
	return apply2("pair", a, b, func(x A, y B) (Pair[A, B], error) {
		return Pair[A, B]{First: x, Second: y}, nil
	})
}

// Switch builds a conditional table: the discriminator is resolved first,
// then enumeration continues in the branch registered for its value.
// A discriminator value without a branch fails the query with MISSING_CASE.
func Switch[D, R comparable](disc Var[D], cases map[D]Var[R]) (Var[R], error) {
	return buildSwitch(disc, cases, nil)
}

// SwitchDefault is Switch with a fallback branch for unlisted values.
func SwitchDefault[D, R comparable](disc Var[D], cases map[D]Var[R], def Var[R]) (Var[R], error) {
	return buildSwitch(disc, cases, &def)
}

func buildSwitch[D, R comparable](disc Var[D], cases map[D]Var[R], def *Var[R]) (Var[R], error) {
	if len(cases) == 0 && def == nil {
		return Var[R]{}, NewConstructionError(ErrCodeValidation, "switch needs at least one branch", nil)
	}
	nodes := []Node{disc}
	for _, branch := range cases {
		nodes = append(nodes, branch)
	}
	if def != nil {
		nodes = append(nodes, *def)
	}
	m := sameModel(nodes...)

	n := newNode(kindSwitch, "switch")
	n.operands = []NodeID{disc.id}
	n.cases = make(map[any]NodeID, len(cases))
	for k, branch := range cases {
		n.cases[k] = branch.id
	}
	if def != nil {
		n.defaultID = def.id
	}
	return Var[R]{m: m, id: m.add(n)}, nil
}

// If builds the table giving then when cond is true and els otherwise.
func If[R comparable](cond Var[bool], then, els Var[R]) Var[R] {
	v, err := Switch(cond, map[bool]Var[R]{true: then, false: els})
	if err != nil {
		// Two branches are always present.
		panic(err)
	}
	return v
}

// Given builds subject conditioned on the conjunction of evidence.
// Evidence is evaluated left to right with short-circuit and shares the
// freeze context with the subject, so correlations are preserved.
// Renormalization happens when the enclosing query aggregates.
func Given[V comparable](subject Var[V], evidence ...Var[bool]) Var[V] {
	nodes := []Node{subject}
	for _, e := range evidence {
		nodes = append(nodes, e)
	}
	m := sameModel(nodes...)
	n := newNode(kindGiven, "given")
	n.operands = ids(nodes)
	return Var[V]{m: m, id: m.add(n)}
}

// Declare creates a named placeholder to be bound later with Define.
// Evaluating a placeholder that was never defined fails the query.
func Declare[V comparable](m *Model, name string) Var[V] {
	n := newNode(kindRef, "ref")
	n.name = name
	id := m.add(n)
	v := Var[V]{m: m, id: id}
	if name != "" {
		v.Named(name)
	}
	return v
}

// Define binds a placeholder created by Declare to def. It fails with
// ErrCyclicDependency if def depends on decl, leaving decl unbound.
func Define[V comparable](decl Var[V], def Var[V]) error {
	m := sameModel(decl, def)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.nodes[decl.id]
	if n.kind != kindRef {
		return NewConstructionError(ErrCodeValidation, "only declared variables can be defined", nil).
			WithNode(m.labelLocked(decl.id))
	}
	if n.target != noNode {
		return NewConstructionError(ErrCodeValidation, "variable is already defined", nil).
			WithNode(m.labelLocked(decl.id))
	}

	n.target = def.id
	builder := newGraphBuilder(m)
	if _, err := builder.build([]NodeID{decl.id}); err != nil {
		n.target = noNode
		return err
	}
	return nil
}

// Reduce folds fn over vars from left to right: fn(fn(v0, v1), v2) and so
// on. A variable repeated in vars stays correlated with itself.
func Reduce[V comparable](fn func(a, b V) V, vars ...Var[V]) (Var[V], error) {
	if len(vars) == 0 {
		return Var[V]{}, NewConstructionError(ErrCodeValidation, "reduce needs at least one variable", nil)
	}
	res := vars[0]
	for _, v := range vars[1:] {
		res = apply2("reduce", res, v, func(x, y V) (V, error) { return fn(x, y), nil })
	}
	return res, nil
}

// Mixture builds the equally weighted mixture of components: a uniform
// discriminator picks one component, whose distribution is then followed.
// P(v) is the mean of the components' P(v).
func Mixture[V comparable](components ...Var[V]) (Var[V], error) {
	if len(components) == 0 {
		return Var[V]{}, NewConstructionError(ErrCodeValidation, "mixture needs at least one component", nil)
	}
	nodes := make([]Node, len(components))
	for i, c := range components {
		nodes[i] = c
	}
	m := sameModel(nodes...)

	idx := make([]int, len(components))
	cases := make(map[int]Var[V], len(components))
	for i, c := range components {
		idx[i] = i
		cases[i] = c
	}
	disc, err := Uniform(m, idx...)
	if err != nil {
		return Var[V]{}, err
	}
	return Switch(disc, cases)
}
