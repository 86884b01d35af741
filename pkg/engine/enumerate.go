package engine

import (
	"fmt"

	"github.com/openfroyo/statues/pkg/prob"
)

// choicePoint is an atomic node bound on the current path together with
// everything needed to try its next entry: the path weight before the
// choice, the trail length and the continuation (frame stack) at the time
// the node was reached.
type choicePoint struct {
	id     NodeID
	idx    int
	before prob.Value
	mark   int
	frames []frame
}

// emitFunc receives the value and weight of every complete path.
type emitFunc func(value any, weight prob.Value) error

// enumerator walks every consistent assignment of the atomic nodes an
// evaluation depends on, depth first. Each atomic node is charged once per
// path, at the moment it is first bound.
type enumerator struct {
	m        *Model
	fc       *freezeContext
	mc       *machine
	weight   prob.Value
	choices  []choicePoint
	maxPaths int64

	paths  int64
	pruned int64
}

func newEnumerator(q *queryRun) *enumerator {
	e := &enumerator{
		m:        q.m,
		fc:       q.fc,
		weight:   q.m.rep.One(),
		maxPaths: q.opts.MaxPaths,
	}
	e.mc = newMachine(q.ctx, q.m, q.fc, e.choose)
	return e
}

func (e *enumerator) choose(n *node) (int, error) {
	frames := make([]frame, len(e.mc.frames))
	copy(frames, e.mc.frames)
	e.choices = append(e.choices, choicePoint{
		id:     n.id,
		before: e.weight,
		mark:   e.fc.mark(),
		frames: frames,
	})
	e.weight = e.weight.Mul(n.entries[0].weight)
	return 0, nil
}

// run enumerates root and calls emit for every path that is not pruned.
func (e *enumerator) run(root NodeID, emit emitFunc) error {
	e.mc.start(root)
	for {
		ok, err := e.mc.run()
		if err != nil {
			return err
		}

		if ok {
			e.paths++
			if err := emit(e.fc.value(root), e.weight); err != nil {
				return err
			}
		} else {
			e.pruned++
		}

		if e.maxPaths > 0 && e.paths+e.pruned > e.maxPaths {
			return NewEvaluationError(ErrCodeComputationTooLarge,
				fmt.Sprintf("enumeration exceeds %d paths", e.maxPaths), nil).
				WithNode(e.m.labelLocked(root)).
				WithDetail("max_paths", e.maxPaths)
		}

		if !e.backtrack() {
			return nil
		}
	}
}

// backtrack moves to the next untried entry of the most recent choice point,
// dropping exhausted ones. It returns false once every path was visited.
func (e *enumerator) backtrack() bool {
	for len(e.choices) > 0 {
		cp := &e.choices[len(e.choices)-1]
		n := e.m.nodes[cp.id]
		e.fc.unwind(cp.mark)

		cp.idx++
		if cp.idx < len(n.entries) {
			e.mc.frames = append(e.mc.frames[:0], cp.frames...)
			e.fc.freeze(cp.id, n.entries[cp.idx].value)
			e.weight = cp.before.Mul(n.entries[cp.idx].weight)
			return true
		}
		e.choices = e.choices[:len(e.choices)-1]
	}
	return false
}
