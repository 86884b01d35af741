package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/statues/pkg/telemetry"
)

// DefaultMaxParallel is the number of queries a Batch runs at once unless
// told otherwise.
const DefaultMaxParallel = 10

// Query is a named unit of work for Batch.
type Query struct {
	Name string
	Run  func(ctx context.Context) (any, error)
}

// BatchResult is the outcome of one Query.
type BatchResult struct {
	Name     string
	Value    any
	Err      error
	Duration time.Duration
}

// Batch runs independent queries concurrently, at most maxParallel at a
// time. Every query gets its own freeze context, so queries over the same
// model do not interfere. A failing query does not cancel the others; its
// error is reported in its result. Results are returned in input order.
// Batch itself only fails when ctx is done before every query was started.
func Batch(ctx context.Context, maxParallel int, queries ...Query) ([]BatchResult, error) {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		var span trace.Span
		ctx, span = tel.Tracer.StartBatchSpan(ctx, len(queries), maxParallel)
		defer span.End()
	}

	results := make([]BatchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	started := 0
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			timer := telemetry.NewTimer()
			v, err := q.Run(gctx)
			results[i] = BatchResult{
				Name:     q.Name,
				Value:    v,
				Err:      err,
				Duration: timer.Duration(),
			}
			return nil
		})
	}

	_ = g.Wait()

	if started < len(queries) {
		for i := started; i < len(queries); i++ {
			results[i] = BatchResult{Name: queries[i].Name, Err: ctx.Err()}
		}
		return results, ctx.Err()
	}
	return results, nil
}
