package engine

import (
	"context"
	"errors"
	"fmt"
)

// ctxCheckInterval is the number of machine steps between two checks of the
// query context.
const ctxCheckInterval = 1024

// frame is a pending evaluation of a node. step counts the operands already
// known to be frozen.
type frame struct {
	id   NodeID
	step int
}

// chooseFunc picks the entry bound to an atomic node that is reached unfrozen
// for the first time on the current path.
type chooseFunc func(n *node) (int, error)

// machine evaluates one node of the graph to a value on the current path of
// a freeze context. It runs on an explicit frame stack, so the evaluation
// depth is bounded by memory rather than by the goroutine stack, and the
// stack can be snapshotted at choice points and restored on backtracking.
type machine struct {
	m      *Model
	fc     *freezeContext
	frames []frame
	choose chooseFunc
	ctx    context.Context
	steps  int64
}

func newMachine(ctx context.Context, m *Model, fc *freezeContext, choose chooseFunc) *machine {
	return &machine{
		m:      m,
		fc:     fc,
		choose: choose,
		ctx:    ctx,
	}
}

func (mc *machine) push(id NodeID) {
	mc.frames = append(mc.frames, frame{id: id})
}

func (mc *machine) pop() {
	mc.frames = mc.frames[:len(mc.frames)-1]
}

// start resets the frame stack to evaluate root.
func (mc *machine) start(root NodeID) {
	mc.frames = mc.frames[:0]
	mc.push(root)
}

// run resumes evaluation until the frame stack is empty. It returns false
// when the path was pruned by evidence.
func (mc *machine) run() (bool, error) {
loop:
	for len(mc.frames) > 0 {
		mc.steps++
		if mc.steps%ctxCheckInterval == 0 {
			if err := mc.ctx.Err(); err != nil {
				return false, err
			}
		}

		f := &mc.frames[len(mc.frames)-1]
		n := mc.m.nodes[f.id]
		if mc.fc.frozen(n.id) {
			mc.pop()
			continue
		}

		switch n.kind {
		case kindAtomic:
			mc.pop()
			idx, err := mc.choose(n)
			if err != nil {
				return false, err
			}
			mc.fc.freeze(n.id, n.entries[idx].value)

		case kindFunc:
			for f.step < len(n.operands) {
				if op := n.operands[f.step]; !mc.fc.frozen(op) {
					mc.push(op)
					continue loop
				}
				f.step++
			}
			v, err := mc.apply(n)
			if err != nil {
				return false, err
			}
			mc.pop()
			mc.fc.freeze(n.id, v)

		case kindSwitch:
			disc := n.operands[0]
			if !mc.fc.frozen(disc) {
				mc.push(disc)
				continue
			}
			branch, err := mc.branch(n, mc.fc.value(disc))
			if err != nil {
				return false, err
			}
			if !mc.fc.frozen(branch) {
				mc.push(branch)
				continue
			}
			mc.pop()
			mc.fc.freeze(n.id, mc.fc.value(branch))

		case kindGiven:
			evidence := n.operands[1:]
			for f.step < len(evidence) {
				ev := evidence[f.step]
				if !mc.fc.frozen(ev) {
					mc.push(ev)
					continue loop
				}
				ok, isBool := mc.fc.value(ev).(bool)
				if !isBool {
					return false, NewEvaluationError(ErrCodeTypeMismatch,
						fmt.Sprintf("evidence %s is %T, not bool", mc.m.labelLocked(ev), mc.fc.value(ev)), nil).
						WithNode(mc.m.labelLocked(n.id))
				}
				if !ok {
					return false, nil
				}
				f.step++
			}
			subject := n.operands[0]
			if !mc.fc.frozen(subject) {
				mc.push(subject)
				continue
			}
			mc.pop()
			mc.fc.freeze(n.id, mc.fc.value(subject))

		case kindRef:
			if n.target == noNode {
				return false, NewEvaluationError(ErrCodeValidation, "variable is declared but never defined", nil).
					WithNode(mc.m.labelLocked(n.id))
			}
			if !mc.fc.frozen(n.target) {
				mc.push(n.target)
				continue
			}
			mc.pop()
			mc.fc.freeze(n.id, mc.fc.value(n.target))

		default:
			return false, NewEvaluationError(ErrCodeInternal, fmt.Sprintf("unknown node kind %d", n.kind), nil)
		}
	}
	return true, nil
}

// apply calls the function of a derived node on its frozen operands.
func (mc *machine) apply(n *node) (v any, err error) {
	args := make([]any, len(n.operands))
	for i, op := range n.operands {
		args[i] = mc.fc.value(op)
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewEvaluationError(ErrCodeTypeMismatch,
				fmt.Sprintf("%s panicked: %v", n.op, r), nil).WithNode(mc.m.labelLocked(n.id))
		}
	}()

	v, err = n.fn(args)
	if err != nil {
		var ee *EngineError
		if errors.As(err, &ee) {
			if ee.Node == "" {
				ee.Node = mc.m.labelLocked(n.id)
			}
			return nil, ee
		}
		return nil, NewEvaluationError(ErrCodeTypeMismatch,
			fmt.Sprintf("%s failed", n.op), err).WithNode(mc.m.labelLocked(n.id))
	}
	return v, nil
}

// branch selects the case of a switch for a discriminator value.
func (mc *machine) branch(n *node, disc any) (id NodeID, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewEvaluationError(ErrCodeTypeMismatch,
				fmt.Sprintf("discriminator value of type %T is not comparable", disc), nil).
				WithNode(mc.m.labelLocked(n.id))
		}
	}()

	if id, ok := n.cases[disc]; ok {
		return id, nil
	}
	if n.defaultID != noNode {
		return n.defaultID, nil
	}
	return noNode, NewEvaluationError(ErrCodeMissingCase,
		fmt.Sprintf("no branch for discriminator value %v", disc), nil).
		WithNode(mc.m.labelLocked(n.id)).
		WithDetail("value", disc)
}
