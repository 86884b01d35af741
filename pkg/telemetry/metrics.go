package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	metricsNamespace = "statues"
	metricsPath      = "/metrics"
)

// queryDurationBuckets span sub-millisecond lookups to enumerations that
// run into the default timeout.
var queryDurationBuckets = []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0}

// Metrics provides Prometheus metrics for queries and model loading.
type Metrics struct {
	config MetricsConfig

	// Query metrics
	queriesStarted   *prometheus.CounterVec
	queriesCompleted *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	pathsEnumerated  *prometheus.CounterVec
	pathsPruned      *prometheus.CounterVec
	samplesDrawn     *prometheus.CounterVec

	// Model metrics
	modelsLoaded *prometheus.CounterVec
	modelNodes   *prometheus.GaugeVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	activeQueries prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := metricsNamespace
	buckets := queryDurationBuckets

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		queriesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_started_total",
				Help:      "Total number of queries started",
			},
			[]string{"kind"},
		),
		queriesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_completed_total",
				Help:      "Total number of queries completed",
			},
			[]string{"kind", "status"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of query evaluation in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		pathsEnumerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "paths_enumerated_total",
				Help:      "Total number of enumeration paths that reached a value",
			},
			[]string{"kind"},
		),
		pathsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "paths_pruned_total",
				Help:      "Total number of enumeration paths pruned by evidence",
			},
			[]string{"kind"},
		),
		samplesDrawn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_drawn_total",
				Help:      "Total number of random trials, rejected ones included",
			},
			[]string{"kind"},
		),

		modelsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "models_loaded_total",
				Help:      "Total number of model files loaded",
			},
			[]string{"format", "status"},
		),
		modelNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_nodes",
				Help:      "Number of nodes in the arena of a loaded model",
			},
			[]string{"model"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		activeQueries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_queries",
				Help:      "Current number of queries being evaluated",
			},
		),
	}

	registry.MustRegister(
		m.queriesStarted,
		m.queriesCompleted,
		m.queryDuration,
		m.pathsEnumerated,
		m.pathsPruned,
		m.samplesDrawn,
		m.modelsLoaded,
		m.modelNodes,
		m.errorsByClass,
		m.errorsByCode,
		m.activeQueries,
	)

	return m, nil
}

// Registry returns the registry metrics are registered with, or nil when
// metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Query Metrics

// RecordQueryStarted increments the counter for started queries.
func (m *Metrics) RecordQueryStarted(kind string) {
	if m.queriesStarted == nil {
		return
	}
	m.queriesStarted.WithLabelValues(kind).Inc()
	m.activeQueries.Inc()
}

// RecordQueryCompleted records a finished query with its status and duration.
func (m *Metrics) RecordQueryCompleted(kind, status string, duration time.Duration) {
	if m.queriesCompleted == nil {
		return
	}
	m.queriesCompleted.WithLabelValues(kind, status).Inc()
	m.queryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.activeQueries.Dec()
}

// RecordPaths adds enumerated and pruned path counts.
func (m *Metrics) RecordPaths(kind string, paths, pruned int64) {
	if m.pathsEnumerated == nil {
		return
	}
	m.pathsEnumerated.WithLabelValues(kind).Add(float64(paths))
	m.pathsPruned.WithLabelValues(kind).Add(float64(pruned))
}

// RecordSamples adds drawn trial counts.
func (m *Metrics) RecordSamples(kind string, trials int64) {
	if m.samplesDrawn == nil {
		return
	}
	m.samplesDrawn.WithLabelValues(kind).Add(float64(trials))
}

// Model Metrics

// RecordModelLoaded records a model file load attempt.
func (m *Metrics) RecordModelLoaded(format, status string) {
	if m.modelsLoaded == nil {
		return
	}
	m.modelsLoaded.WithLabelValues(format, status).Inc()
}

// SetModelNodes sets the arena size of a loaded model.
func (m *Metrics) SetModelNodes(model string, nodes int) {
	if m.modelNodes == nil {
		return
	}
	m.modelNodes.WithLabelValues(model).Set(float64(nodes))
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Log error but don't fail the application
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("metrics server error")
		}
	}()

	return nil
}
