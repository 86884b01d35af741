package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/openfroyo/statues/pkg/prob"
)

// Clone returns a deep copy of the graph below v with fresh identities.
// The copy has the same distribution as v but is independent of it; a node
// shared inside the subgraph is cloned once, so the copy keeps the internal
// correlations of the original. Clones are unnamed.
func Clone[V comparable](v Var[V]) (Var[V], error) {
	m := sameModel(v)

	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := newGraphBuilder(m).build([]NodeID{v.id})
	if err != nil {
		return Var[V]{}, err
	}

	remap := make(map[NodeID]NodeID, len(g.Nodes))
	mapID := func(id NodeID) NodeID {
		if id == noNode {
			return noNode
		}
		return remap[id]
	}

	for _, level := range g.Levels {
		for _, id := range level {
			src := m.nodes[id]
			dst := newNode(src.kind, src.op)
			dst.entries = src.entries
			dst.total = src.total
			dst.cumul = src.cumul
			dst.fn = src.fn
			if src.operands != nil {
				dst.operands = make([]NodeID, len(src.operands))
				for i, op := range src.operands {
					dst.operands[i] = mapID(op)
				}
			}
			if src.cases != nil {
				dst.cases = maps.Clone(src.cases)
				for k, b := range dst.cases {
					dst.cases[k] = mapID(b)
				}
			}
			dst.defaultID = mapID(src.defaultID)
			dst.target = mapID(src.target)

			dst.id = NodeID(len(m.nodes))
			m.nodes = append(m.nodes, dst)
			remap[id] = dst.id
		}
	}

	return Var[V]{m: m, id: remap[v.id]}, nil
}

// Materialize evaluates v and returns a fresh atomic node with its
// normalized distribution. The result is independent of v.
func Materialize[V comparable](ctx context.Context, v Var[V], opts ...Option) (Var[V], error) {
	pmf, err := Distribution(ctx, v, opts...)
	if err != nil {
		return Var[V]{}, err
	}
	entries := make([]Entry[V], pmf.Len())
	for i, o := range pmf.Outcomes() {
		entries[i] = Entry[V]{Value: o.Value, Weight: o.P}
	}
	return Atomic(v.m, entries...)
}

// Times returns the distribution of op folded over n independent copies of
// v. It doubles materialized partial results, so the enumeration cost grows
// with log2(n) steps of the squared support size rather than with the
// support size to the power n. The result is a fresh atomic node.
func Times[V comparable](ctx context.Context, v Var[V], n int, op func(a, b V) V, opts ...Option) (Var[V], error) {
	if n < 1 {
		return Var[V]{}, NewConstructionError(ErrCodeValidation,
			fmt.Sprintf("times needs at least one copy, got %d", n), nil)
	}
	base, err := Materialize(ctx, v, opts...)
	if err != nil {
		return Var[V]{}, err
	}
	return timesOf(ctx, base, n, op, opts)
}

func timesOf[V comparable](ctx context.Context, base Var[V], n int, op func(a, b V) V, opts []Option) (Var[V], error) {
	if n == 1 {
		return base, nil
	}

	half, err := timesOf(ctx, base, n/2, op, opts)
	if err != nil {
		return Var[V]{}, err
	}
	twin, err := Clone(half)
	if err != nil {
		return Var[V]{}, err
	}
	res := Map2(half, twin, op)

	if n%2 == 1 {
		extra, err := Clone(base)
		if err != nil {
			return Var[V]{}, err
		}
		res = Map2(res, extra, op)
	}
	return Materialize(ctx, res, opts...)
}

// Draw returns the distribution of n successive draws from v without
// replacement. Each tuple lists the drawn values in drawing order; a value
// already drawn is excluded from later draws and the remaining
// probabilities are renormalized. The result is a fresh atomic node.
func Draw[V comparable](ctx context.Context, v Var[V], n int, opts ...Option) (Var[Tuple], error) {
	if n < 0 || n > MaxJointArity {
		return Var[Tuple]{}, NewConstructionError(ErrCodeValidation,
			fmt.Sprintf("draw needs between 0 and %d values, got %d", MaxJointArity, n), nil)
	}
	pmf, err := Distribution(ctx, v, opts...)
	if err != nil {
		return Var[Tuple]{}, err
	}
	if n > pmf.Len() {
		return Var[Tuple]{}, NewConstructionError(ErrCodeValidation,
			fmt.Sprintf("cannot draw %d distinct values out of %d", n, pmf.Len()), nil)
	}

	outs := pmf.Outcomes()
	used := make([]bool, len(outs))
	picked := make([]any, 0, n)
	var entries []Entry[Tuple]

	var walk func(w, left prob.Value) error
	walk = func(w, left prob.Value) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(picked) == n {
			entries = append(entries, Entry[Tuple]{Value: NewTuple(picked...), Weight: w})
			return nil
		}
		for i, o := range outs {
			if used[i] {
				continue
			}
			share, err := o.P.Quo(left)
			if err != nil {
				return NewEvaluationError(ErrCodeArithmetic, "renormalizing remaining draws", err)
			}
			used[i] = true
			picked = append(picked, o.Value)
			err = walk(w.Mul(share), left.Sub(o.P))
			picked = picked[:len(picked)-1]
			used[i] = false
			if err != nil {
				return err
			}
		}
		return nil
	}

	one := pmf.Representation().One()
	if err := walk(one, one); err != nil {
		return Var[Tuple]{}, err
	}
	return Atomic(v.m, entries...)
}
