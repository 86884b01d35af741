package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/openfroyo/statues/pkg/prob"
)

// randomChoice picks an entry with probability proportional to its weight,
// by binary search of a uniform draw scaled to the table total against the
// cumulative weights.
func randomChoice(rep prob.Representation, rng *rand.Rand) chooseFunc {
	return func(n *node) (int, error) {
		u := rep.Unit(rng).Mul(n.total)
		i := sort.Search(len(n.cumul), func(i int) bool {
			return n.cumul[i].Cmp(u) > 0
		})
		if i == len(n.cumul) {
			// Rounding of inexact representations can put u on the total.
			i = len(n.cumul) - 1
		}
		return i, nil
	}
}

// draw runs independent random trials of root until count values survive the
// evidence. Consecutive rejections are capped by MaxSampleTries.
func (q *queryRun) draw(root NodeID, count int, rng *rand.Rand, keep func(any) error) error {
	mc := newMachine(q.ctx, q.m, q.fc, randomChoice(q.m.rep, rng))
	maxTries := q.opts.MaxSampleTries
	if maxTries <= 0 {
		maxTries = DefaultMaxSampleTries
	}

	for drawn := 0; drawn < count; {
		rejected := 0
		for {
			q.fc.reset()
			mc.start(root)
			ok, err := mc.run()
			if err != nil {
				return err
			}
			q.stats.Samples++
			if ok {
				break
			}
			q.stats.Pruned++
			rejected++
			if rejected >= maxTries {
				return q.rejectionLimit(root, maxTries)
			}
		}
		if err := keep(q.fc.value(root)); err != nil {
			return err
		}
		drawn++
	}
	return nil
}

// errFeasible stops a feasibility check at the first surviving path.
var errFeasible = errors.New("feasible path found")

// rejectionLimit reports a draw that hit MaxSampleTries. Evidence that is
// false on every path is impossible; evidence that merely is rare exceeds
// the sampling budget.
func (q *queryRun) rejectionLimit(root NodeID, maxTries int) error {
	ok, err := q.feasible(root)
	if err != nil {
		return err
	}
	if !ok {
		return NewEvaluationError(ErrCodeImpossibleCondition,
			"evidence is false on every path", nil).
			WithNode(q.m.labelLocked(root))
	}
	return NewEvaluationError(ErrCodeComputationTooLarge,
		fmt.Sprintf("evidence rejected %d consecutive trials", maxTries), nil).
		WithNode(q.m.labelLocked(root)).
		WithDetail("max_sample_tries", maxTries)
}

// feasible reports whether some path of root survives its evidence. It
// enumerates until the first surviving path, within the query limits.
func (q *queryRun) feasible(root NodeID) (bool, error) {
	q.fc.reset()
	e := newEnumerator(q)
	err := e.run(root, func(any, prob.Value) error { return errFeasible })
	q.stats.Paths += e.paths
	q.stats.Pruned += e.pruned
	if errors.Is(err, errFeasible) {
		return true, nil
	}
	return false, err
}

// Sample draws n random values of v. Each draw binds every atomic node once,
// so shared ancestors stay consistent within a draw; draws are independent.
// Draws whose evidence is false are rejected and retried.
func Sample[V comparable](ctx context.Context, v Var[V], n int, opts ...Option) ([]V, error) {
	if n < 0 {
		return nil, NewEvaluationError(ErrCodeValidation, fmt.Sprintf("negative sample size %d", n), nil)
	}
	out := make([]V, 0, n)
	err := v.m.query(ctx, "sample", v.id, opts, func(q *queryRun) error {
		return q.draw(v.id, n, q.opts.rng(), func(raw any) error {
			val, ok := cast[V](raw)
			if !ok {
				return NewEvaluationError(ErrCodeTypeMismatch,
					fmt.Sprintf("sampled value %v is %T", raw, raw), nil).WithNode(q.m.labelLocked(v.id))
			}
			out = append(out, val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Estimate draws n random values of v and returns their relative frequencies.
func Estimate[V comparable](ctx context.Context, v Var[V], n int, opts ...Option) (*PMF[V], error) {
	if n <= 0 {
		return nil, NewEvaluationError(ErrCodeValidation, fmt.Sprintf("estimate needs a positive sample size, got %d", n), nil)
	}
	var pmf *PMF[V]
	err := v.m.query(ctx, "estimate", v.id, opts, func(q *queryRun) error {
		agg := newAggregator(q.m.rep)
		one := q.m.rep.One()
		if err := q.draw(v.id, n, q.opts.rng(), func(raw any) error {
			return agg.add(raw, one)
		}); err != nil {
			return err
		}
		var err error
		pmf, err = newPMF[V](agg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pmf, nil
}
