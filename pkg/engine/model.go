package engine

import (
	"fmt"
	"sync"

	"github.com/openfroyo/statues/pkg/prob"
)

// NodeID is the stable identity of a node inside its Model.
// Two structurally identical nodes built separately get different IDs and
// are independent random variables.
type NodeID int

// noNode marks an unset reference.
const noNode NodeID = -1

type nodeKind uint8

const (
	kindAtomic nodeKind = iota
	kindFunc
	kindSwitch
	kindGiven
	kindRef
)

// String returns the kind name used in graph exports.
func (k nodeKind) String() string {
	switch k {
	case kindAtomic:
		return "atomic"
	case kindFunc:
		return "func"
	case kindSwitch:
		return "switch"
	case kindGiven:
		return "given"
	case kindRef:
		return "ref"
	default:
		return "unknown"
	}
}

type entry struct {
	value  any
	weight prob.Value
}

// node is immutable once appended to the arena, except for the target of a
// reference node which is set exactly once by Define.
type node struct {
	id   NodeID
	kind nodeKind
	op   string
	name string

	// atomic
	entries []entry
	total   prob.Value
	cumul   []prob.Value

	// func: operands in argument order.
	// switch: operands[0] is the discriminator.
	// given: operands[0] is the subject, the rest is evidence.
	operands []NodeID
	fn       func(args []any) (any, error)

	// switch
	cases     map[any]NodeID
	defaultID NodeID

	// ref
	target NodeID
}

// Model is the arena owning a network of random variables.
//
// A Model is safe for concurrent use: constructors take a write lock and
// queries hold a read lock for their whole duration, each with its own
// freeze context.
type Model struct {
	mu    sync.RWMutex
	rep   prob.Representation
	nodes []*node
	names map[string]NodeID
	opts  Options
}

// NewModel creates an empty model whose weights use rep.
// The options become the defaults of every query on the model.
func NewModel(rep prob.Representation, opts ...Option) *Model {
	if rep == nil {
		rep = prob.Rational()
	}
	m := &Model{
		rep:   rep,
		names: make(map[string]NodeID),
		opts:  defaultOptions(),
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Representation returns the probability representation of the model.
func (m *Model) Representation() prob.Representation {
	return m.rep
}

// Len returns the number of nodes in the arena.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Lookup returns the node registered under name with Var.Named.
func (m *Model) Lookup(name string) (Var[any], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[name]
	if !ok {
		return Var[any]{}, false
	}
	return Var[any]{m: m, id: id}, true
}

// Label returns the display label of a node.
func (m *Model) Label(id NodeID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.labelLocked(id)
}

func (m *Model) labelLocked(id NodeID) string {
	if id < 0 || int(id) >= len(m.nodes) {
		return fmt.Sprintf("invalid#%d", id)
	}
	n := m.nodes[id]
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("%s#%d", n.op, n.id)
}

// add appends n to the arena and returns its identity.
func (m *Model) add(n *node) NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.id = NodeID(len(m.nodes))
	m.nodes = append(m.nodes, n)
	return n.id
}

// Node is an untyped handle to a node of a Model.
type Node interface {
	ID() NodeID
	Model() *Model
}

// Var is a typed handle to a random variable with values of type V.
// The zero Var is invalid.
type Var[V comparable] struct {
	m  *Model
	id NodeID
}

// ID returns the node identity.
func (v Var[V]) ID() NodeID { return v.id }

// Model returns the owning model.
func (v Var[V]) Model() *Model { return v.m }

// Valid reports whether v refers to a node.
func (v Var[V]) Valid() bool { return v.m != nil }

// String returns the node label.
func (v Var[V]) String() string {
	if v.m == nil {
		return "<invalid>"
	}
	return v.m.Label(v.id)
}

// Named registers v under name in its model and sets its display label.
// A later node registered with the same name replaces the lookup entry.
func (v Var[V]) Named(name string) Var[V] {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.nodes[v.id].name = name
	v.m.names[name] = v.id
	return v
}

// Untyped returns v as a Var[any].
func Untyped[V comparable](v Var[V]) Var[any] {
	return Var[any]{m: v.m, id: v.id}
}

// Typed reinterprets n as a Var[V]. The value type is checked when the
// variable is evaluated; a mismatch fails the query with ErrTypeMismatch.
func Typed[V comparable](n Node) Var[V] {
	return Var[V]{m: n.Model(), id: n.ID()}
}

// sameModel returns the model shared by all nodes. Mixing models or passing
// a zero Var is a programming error and panics.
func sameModel(nodes ...Node) *Model {
	var m *Model
	for _, n := range nodes {
		nm := n.Model()
		if nm == nil {
			panic(NewConstructionError(ErrCodeValidation, "invalid (zero) variable used as operand", nil))
		}
		if m == nil {
			m = nm
		} else if nm != m {
			panic(NewConstructionError(ErrCodeValidation, "operands belong to different models", nil))
		}
	}
	if m == nil {
		panic(NewConstructionError(ErrCodeValidation, "at least one operand is required", nil))
	}
	return m
}

func ids(nodes []Node) []NodeID {
	out := make([]NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

// cast converts an engine value to V. Untyped nil converts to the zero value
// of interface types only.
func cast[V any](raw any) (V, bool) {
	if raw == nil {
		var zero V
		return zero, any(zero) == nil
	}
	v, ok := raw.(V)
	return v, ok
}
