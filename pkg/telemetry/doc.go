// Package telemetry provides observability instrumentation for the Statues
// probability engine.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus) and event publishing into a
// single value that travels with the context of each query.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry spans per query and per batch
//  3. Metrics Collection - Prometheus counters for queries, paths and samples
//  4. Event Publishing - Query lifecycle and model reload notifications
//
// Every pillar is optional. A query run with a context that carries no
// Telemetry still logs through the context logger (a no-op by default) and
// records nothing else.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Queries
//
// The engine brackets every query with StartQuery and End:
//
//	qc := telemetry.StartQuery(ctx, telemetry.QueryInfo{Kind: "distribution", Target: "sum"})
//	stats, err := run(qc.Ctx)
//	qc.End(stats, err)
//
// StartQuery assigns a query ID, opens a "query.<kind>" span, increments the
// started counter and publishes a query.started event. End records the path,
// pruned path and sample counts, the duration, and either a query.completed
// or a query.failed event. Errors that implement ClassifiedError are counted
// by class and code.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("config")
//	logger.WithModel("dice").WithNode("sum").Info("model loaded")
//	logger.WithError(err).Error("reload failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics
//
// Metrics live in a private registry exposed by Handler or by
// StartMetricsServer:
//
//	statues_queries_started_total{kind}
//	statues_queries_completed_total{kind,status}
//	statues_query_duration_seconds{kind}
//	statues_paths_enumerated_total{kind}
//	statues_paths_pruned_total{kind}
//	statues_samples_drawn_total{kind}
//	statues_models_loaded_total{format,status}
//	statues_model_nodes{model}
//	statues_errors_by_class_total{class}
//	statues_errors_by_code_total{code}
//	statues_active_queries
//
// # Events
//
// Subscribers receive events synchronously on the publishing goroutine:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.QueryID)
//	}, telemetry.FilterByType(telemetry.EventTypeQueryFailed))
//
// # Configuration
//
// DefaultConfig logs to stderr in console format with tracing and metrics
// disabled. The CLI flags --log-level, --metrics-addr and --trace adjust it.
package telemetry
