package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if t.Metrics.server != nil {
		if err := t.Metrics.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// ClassifiedError is implemented by errors carrying a class and a code,
// which are reported as metric labels and span attributes.
type ClassifiedError interface {
	error
	Classification() (class, code string)
}

// QueryInfo describes a query being started.
type QueryInfo struct {
	Kind           string
	Target         string
	Representation string
}

// QueryStats summarises a finished query.
type QueryStats struct {
	Paths   int64
	Pruned  int64
	Samples int64
}

// QueryContext carries the instrumentation of one query.
type QueryContext struct {
	Ctx    context.Context
	ID     string
	Span   trace.Span
	Logger *Logger
	Timer  *Timer

	info QueryInfo
	tel  *Telemetry
}

// StartQuery begins an instrumented query. Without telemetry in ctx it still
// assigns an ID and a logger taken from ctx.
func StartQuery(ctx context.Context, info QueryInfo) *QueryContext {
	id := uuid.New().String()
	tel := FromTelemetryContext(ctx)

	qc := &QueryContext{
		Ctx:   ctx,
		ID:    id,
		Span:  trace.SpanFromContext(ctx),
		Timer: NewTimer(),
		info:  info,
		tel:   tel,
	}

	if tel != nil {
		qc.Ctx, qc.Span = tel.Tracer.StartQuerySpan(ctx, id, info.Kind, info.Target)
		qc.Span.SetAttributes(AttrRepresentation.String(info.Representation))
		tel.Metrics.RecordQueryStarted(info.Kind)
		_ = tel.Events.PublishQueryStarted(id, info.Kind, info.Target)
	}

	qc.Logger = FromContext(ctx).
		NewComponentLogger("engine").
		WithQueryID(id).
		WithFields(map[string]interface{}{
			"kind": info.Kind,
			"node": info.Target,
		})
	if qc.Span.SpanContext().IsValid() {
		qc.Logger = qc.Logger.WithField("trace_id", qc.Span.SpanContext().TraceID().String())
	}
	qc.Logger.Debug("query started")

	return qc
}

// End finishes the query, recording metrics, span status and events.
func (qc *QueryContext) End(stats QueryStats, err error) {
	duration := qc.Timer.Duration()

	status := "succeeded"
	if err != nil {
		status = "failed"
	}

	logger := qc.Logger.WithFields(map[string]interface{}{
		"paths":    stats.Paths,
		"pruned":   stats.Pruned,
		"samples":  stats.Samples,
		"duration": duration.String(),
	})
	if err != nil {
		logger.WithError(err).Debug("query failed")
	} else {
		logger.Debug("query completed")
	}

	if qc.tel == nil {
		return
	}

	qc.Span.SetAttributes(
		AttrPaths.Int64(stats.Paths),
		AttrPruned.Int64(stats.Pruned),
		AttrSamples.Int64(stats.Samples),
	)
	qc.tel.Metrics.RecordQueryCompleted(qc.info.Kind, status, duration)
	qc.tel.Metrics.RecordPaths(qc.info.Kind, stats.Paths, stats.Pruned)
	qc.tel.Metrics.RecordSamples(qc.info.Kind, stats.Samples)

	if err != nil {
		class, code := "unknown", ""
		var ce ClassifiedError
		if errors.As(err, &ce) {
			class, code = ce.Classification()
		}
		qc.Span.SetAttributes(
			AttrErrorClass.String(class),
			AttrErrorCode.String(code),
		)
		RecordError(qc.Span, err)
		qc.tel.Metrics.RecordError(class, code)
		_ = qc.tel.Events.PublishQueryFailed(qc.ID, qc.info.Kind, qc.info.Target, err.Error())
	} else {
		RecordSuccess(qc.Span)
		_ = qc.tel.Events.PublishQueryCompleted(qc.ID, qc.info.Kind, qc.info.Target, stats.Paths, duration)
	}
	qc.Span.End()
}
