package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/statues/pkg/telemetry"
)

var (
	// Global flags
	logLevel      string
	dbPath        string
	metricsAddr   string
	traceExporter string
	jsonOutput    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	var tel *telemetry.Telemetry

	rootCmd := &cobra.Command{
		Use:   "statues",
		Short: "statues - exact discrete probability engine",
		Long: `statues computes exact probability distributions of discrete random
variables described in YAML or CUE model files.

Features:
  - Exact rational, float or decimal probabilities
  - Variables derived with Starlark expressions
  - Conditioning on boolean evidence
  - Random sampling consistent with the exact distribution
  - Result history in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			tel, err = setupTelemetry(version)
			if err != nil {
				return err
			}
			cmd.SetContext(tel.WithContext(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if tel == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tel.Shutdown(ctx)
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("STATUES_DB", "statues.db"), "result history database path")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "none", "trace exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newSampleCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

func setupTelemetry(version string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = logLevel

	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}

	switch traceExporter {
	case "", "none":
	case "otlp":
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "otlp"
		cfg.Tracing.Endpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	default:
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = traceExporter
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	zerolog.SetGlobalLevel(telemetry.ParseLevel(logLevel))
	return tel, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
