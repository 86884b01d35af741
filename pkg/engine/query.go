package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/openfroyo/statues/pkg/prob"
	"github.com/openfroyo/statues/pkg/telemetry"
)

// DefaultMaxSampleTries bounds the consecutive rejected trials of one draw.
const DefaultMaxSampleTries = 10000

// Options bound the resources of a query.
type Options struct {
	// MaxPaths caps the number of enumeration paths, pruned ones included.
	// Zero means unbounded.
	MaxPaths int64

	// Timeout caps the wall-clock duration of a query. Zero means none.
	Timeout time.Duration

	// MaxSampleTries caps consecutive rejected trials of one random draw.
	MaxSampleTries int

	// Rand is the random source of sampling queries. It is used as is, so a
	// source shared between concurrent queries must not be set here.
	Rand *rand.Rand

	// Seed seeds a fresh source per sampling query when Rand is nil.
	Seed   uint64
	Seeded bool

	// Stats, when set, receives the counters of the query once it ends.
	Stats *Stats
}

// Stats counts the work done by one query.
type Stats struct {
	Paths    int64
	Pruned   int64
	Samples  int64
	Duration time.Duration
}

// Option configures Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{MaxSampleTries: DefaultMaxSampleTries}
}

// WithMaxPaths caps the number of enumeration paths.
func WithMaxPaths(n int64) Option {
	return func(o *Options) { o.MaxPaths = n }
}

// WithTimeout caps the duration of a query.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxSampleTries caps rejected trials per random draw.
func WithMaxSampleTries(n int) Option {
	return func(o *Options) { o.MaxSampleTries = n }
}

// WithRand sets the random source of sampling queries.
func WithRand(rng *rand.Rand) Option {
	return func(o *Options) { o.Rand = rng }
}

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(o *Options) {
		o.Seed = seed
		o.Seeded = true
	}
}

// WithStats reports the query counters into dst.
func WithStats(dst *Stats) Option {
	return func(o *Options) { o.Stats = dst }
}

func (o Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	if o.Seeded {
		return rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// queryRun is the state of one query: its own freeze context over a model
// whose read lock is held for the whole run.
type queryRun struct {
	ctx   context.Context
	m     *Model
	opts  Options
	fc    *freezeContext
	stats telemetry.QueryStats
}

// query runs fn under the model's read lock with telemetry, limits and
// error translation applied.
func (m *Model) query(ctx context.Context, kind string, root NodeID, opts []Option, fn func(q *queryRun) error) error {
	if m == nil {
		return NewEvaluationError(ErrCodeValidation, "query on an invalid (zero) variable", nil)
	}

	o := m.opts
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	qc := telemetry.StartQuery(ctx, telemetry.QueryInfo{
		Kind:           kind,
		Target:         m.labelLocked(root),
		Representation: m.rep.Name(),
	})

	runCtx := qc.Ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, o.Timeout)
		defer cancel()
	}

	q := &queryRun{
		ctx:  runCtx,
		m:    m,
		opts: o,
		fc:   newFreezeContext(len(m.nodes)),
	}

	err := runCtx.Err()
	if err == nil {
		err = fn(q)
	}
	err = q.translate(ctx, err)
	if o.Stats != nil {
		*o.Stats = Stats{
			Paths:    q.stats.Paths,
			Pruned:   q.stats.Pruned,
			Samples:  q.stats.Samples,
			Duration: qc.Timer.Duration(),
		}
	}
	qc.End(q.stats, err)
	return err
}

// translate maps context errors: our own deadline is a resource limit, a
// cancellation from the caller is returned wrapped.
func (q *queryRun) translate(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if parent.Err() == nil && q.opts.Timeout > 0 {
		return NewEvaluationError(ErrCodeComputationTooLarge,
			fmt.Sprintf("query exceeded timeout of %s", q.opts.Timeout), err).
			WithDetail("timeout", q.opts.Timeout.String())
	}
	return fmt.Errorf("query cancelled: %w", err)
}

// enumerate aggregates the weights of every path of root.
func (q *queryRun) enumerate(root NodeID) (*aggregator, error) {
	agg := newAggregator(q.m.rep)
	e := newEnumerator(q)
	err := e.run(root, agg.add)
	q.stats.Paths += e.paths
	q.stats.Pruned += e.pruned
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Distribution computes the exact normalized distribution of v.
func Distribution[V comparable](ctx context.Context, v Var[V], opts ...Option) (*PMF[V], error) {
	var pmf *PMF[V]
	err := v.m.query(ctx, "distribution", v.id, opts, func(q *queryRun) error {
		agg, err := q.enumerate(v.id)
		if err != nil {
			return err
		}
		pmf, err = newPMF[V](agg)
		var ee *EngineError
		if errors.As(err, &ee) {
			ee.WithNode(q.m.labelLocked(v.id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return pmf, nil
}

// Weights returns the un-normalized weight of each value of v, in the order
// values are first produced. Pruned paths contribute nothing; when every path
// is pruned it fails with ErrImpossibleCondition, as Distribution does.
func Weights[V comparable](ctx context.Context, v Var[V], opts ...Option) ([]Entry[V], error) {
	var out []Entry[V]
	err := v.m.query(ctx, "weights", v.id, opts, func(q *queryRun) error {
		agg, err := q.enumerate(v.id)
		if err != nil {
			return err
		}
		if agg.total().IsZero() && q.stats.Pruned > 0 {
			return NewEvaluationError(ErrCodeImpossibleCondition, "evidence is false on every path", nil).
				WithNode(q.m.labelLocked(v.id))
		}
		out = make([]Entry[V], len(agg.values))
		for i, raw := range agg.values {
			val, ok := cast[V](raw)
			if !ok {
				return NewEvaluationError(ErrCodeTypeMismatch,
					fmt.Sprintf("outcome %v is %T", raw, raw), nil).WithNode(q.m.labelLocked(v.id))
			}
			out[i] = Entry[V]{Value: val, Weight: agg.weights[i]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// P returns the exact probability that ev is true.
func P(ctx context.Context, ev Var[bool], opts ...Option) (prob.Value, error) {
	pmf, err := Distribution(ctx, ev, opts...)
	if err != nil {
		return nil, err
	}
	return pmf.P(true), nil
}

// Pf returns the probability that ev is true as a float64.
func Pf(ctx context.Context, ev Var[bool], opts ...Option) (float64, error) {
	p, err := P(ctx, ev, opts...)
	if err != nil {
		return 0, err
	}
	return p.Float64(), nil
}

// Cases returns the number of complete enumeration paths of v, that is the
// number of consistent assignments surviving evidence.
func Cases[V comparable](ctx context.Context, v Var[V], opts ...Option) (int64, error) {
	var n int64
	err := v.m.query(ctx, "cases", v.id, opts, func(q *queryRun) error {
		e := newEnumerator(q)
		err := e.run(v.id, func(any, prob.Value) error { return nil })
		q.stats.Paths, q.stats.Pruned = e.paths, e.pruned
		n = e.paths
		return err
	})
	return n, err
}

// IsTrue reports whether ev is true on every surviving path.
func IsTrue(ctx context.Context, ev Var[bool], opts ...Option) (bool, error) {
	p, err := P(ctx, ev, opts...)
	if err != nil {
		return false, err
	}
	return p.IsOne(), nil
}

// IsFeasible reports whether ev is true on at least one surviving path.
func IsFeasible(ctx context.Context, ev Var[bool], opts ...Option) (bool, error) {
	p, err := P(ctx, ev, opts...)
	if err != nil {
		return false, err
	}
	return !p.IsZero(), nil
}

// WorstCasePaths returns an upper bound on the number of paths a query of n
// enumerates: the product of the table sizes of its distinct atomic ancestors.
func WorstCasePaths(n Node) (*big.Int, error) {
	g, err := n.Model().Graph(n)
	if err != nil {
		return nil, err
	}
	return g.WorstCasePaths(), nil
}
