package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/statues/pkg/prob"
	"github.com/openfroyo/statues/pkg/telemetry"
)

func TestSample_Frequency(t *testing.T) {
	ctx := context.Background()
	for _, rep := range []prob.Representation{prob.Rational(), prob.Float()} {
		t.Run(rep.Name(), func(t *testing.T) {
			m := NewModel(rep)
			a := coin(m, 3, 1)

			const trials = 100000
			draws, err := Sample(ctx, a, trials, WithSeed(42))
			require.NoError(t, err)
			require.Len(t, draws, trials)

			heads := 0
			for _, d := range draws {
				if d == "H" {
					heads++
				}
			}
			assert.InDelta(t, 0.75, float64(heads)/trials, 0.01)
		})
	}
}

func TestSample_Reproducible(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	first := must(Sample(ctx, d, 50, WithSeed(7)))
	second := must(Sample(ctx, d, 50, WithSeed(7)))
	assert.Equal(t, first, second)
}

func TestSample_KeepsCorrelation(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)
	pair := PairOf(d, Map(d, func(v int) int { return v * 10 }))

	draws := must(Sample(ctx, pair, 1000, WithSeed(1)))
	for _, p := range draws {
		assert.Equal(t, p.First*10, p.Second)
	}
}

func TestSample_RejectsFalseEvidence(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	draws := must(Sample(ctx, Given(d, Gt(d, Certain(m, 4))), 500, WithSeed(3)))
	for _, v := range draws {
		assert.Contains(t, []int{5, 6}, v)
	}

	_, err := Sample(ctx, Given(d, Is(d, 7)), 1, WithSeed(3), WithMaxSampleTries(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImpossibleCondition))
}

func TestSample_RareEvidenceExceedsTries(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	vals := make([]int, 100000)
	for i := range vals {
		vals[i] = i
	}
	d := must(Uniform(m, vals...))
	rare := Given(d, Is(d, 0))

	p, err := P(ctx, Is(d, 0))
	require.NoError(t, err)
	assert.Equal(t, "1/100000", p.String())

	_, err = Sample(ctx, rare, 1, WithSeed(1), WithMaxSampleTries(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrComputationTooLarge))
	assert.False(t, errors.Is(err, ErrImpossibleCondition))

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 5, ee.Details["max_sample_tries"])
}

func TestEstimate(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Float())
	a := coin(m, 3, 1)

	pmf, err := Estimate(ctx, a, 20000, WithSeed(11))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, pmf.Pf("H"), 0.02)

	_, err = Estimate(ctx, a, 0)
	assert.Error(t, err)
}

func TestMaxPaths(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	sum := Add(Add(die(m), die(m)), die(m))

	_, err := Distribution(ctx, sum, WithMaxPaths(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrComputationTooLarge))

	pmf, err := Distribution(ctx, sum, WithMaxPaths(216))
	require.NoError(t, err)
	assert.Equal(t, "1/216", pmf.P(3).String())

	bound, err := WorstCasePaths(sum)
	require.NoError(t, err)
	assert.EqualValues(t, 216, bound.Int64())
}

func TestModelDefaultOptions(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil, WithMaxPaths(10))
	sum := Add(die(m), die(m))

	_, err := Distribution(ctx, sum)
	assert.True(t, errors.Is(err, ErrComputationTooLarge))

	_, err = Distribution(ctx, sum, WithMaxPaths(0))
	assert.NoError(t, err, "per-query options override model defaults")
}

func TestTimeout(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	sum := die(m)
	for i := 0; i < 12; i++ {
		sum = Add(sum, die(m))
	}

	_, err := Distribution(ctx, sum, WithTimeout(time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrComputationTooLarge))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewModel(nil)
	_, err := Distribution(ctx, die(m))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, Code(err))
}

func TestConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	d1, d2 := die(m), die(m)
	seven := Is(Add(d1, d2), 7)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := P(ctx, seven)
			if err == nil {
				results[i] = p.String()
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "1/6", r)
	}
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	m := NewModel(prob.Rational())
	a := coin(m, 3, 1)

	results, err := Batch(ctx, 2,
		Query{Name: "heads", Run: func(ctx context.Context) (any, error) {
			return P(ctx, Is(a, "H"))
		}},
		Query{Name: "impossible", Run: func(ctx context.Context) (any, error) {
			return Distribution(ctx, Given(a, Is(a, "X")))
		}},
		Query{Name: "cases", Run: func(ctx context.Context) (any, error) {
			return Cases(ctx, a)
		}},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "heads", results[0].Name)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "3/4", results[0].Value.(prob.Value).String())

	assert.Equal(t, "impossible", results[1].Name)
	assert.True(t, errors.Is(results[1].Err, ErrImpossibleCondition))

	assert.Equal(t, "cases", results[2].Name)
	assert.EqualValues(t, 2, results[2].Value)
}

func TestBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Batch(ctx, 1, Query{Name: "never", Run: func(context.Context) (any, error) {
		return nil, nil
	}})
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 1)
	assert.Equal(t, "never", results[0].Name)
}

func TestQueryTelemetry(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true
	tel, err := telemetry.NewTelemetry(cfg)
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	var mu sync.Mutex
	var types []string
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}, nil)

	ctx := tel.WithContext(context.Background())
	m := NewModel(nil)
	a := coin(m, 1, 1)

	_, err = P(ctx, Is(a, "H"))
	require.NoError(t, err)
	_, err = Distribution(ctx, Given(a, Is(a, "X")))
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		telemetry.EventTypeQueryStarted,
		telemetry.EventTypeQueryCompleted,
		telemetry.EventTypeQueryStarted,
		telemetry.EventTypeQueryFailed,
	}, types)
}

func TestWithStats(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil)
	d := die(m)

	var stats Stats
	_, err := Distribution(ctx, Given(d, Gt(d, Certain(m, 4))), WithStats(&stats))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Paths)
	assert.EqualValues(t, 4, stats.Pruned)
	assert.Zero(t, stats.Samples)

	_, err = Sample(ctx, d, 10, WithSeed(1), WithStats(&stats))
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.Samples)
}
