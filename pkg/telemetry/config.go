package telemetry

import (
	"fmt"
)

// Config is the telemetry configuration of the statues CLI. The root
// command starts from DefaultConfig and applies its flags.
type Config struct {
	ServiceName    string
	ServiceVersion string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error or fatal.
	Level string

	// Format is console or json.
	Format string

	// Output is stdout, stderr or a file path.
	Output string

	EnableCaller bool

	// TimeFormat is unix, unixms, unixmicro or rfc3339.
	TimeFormat string
}

// TracingConfig configures query spans.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none.
	Exporter string

	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool
}

// MetricsConfig configures the Prometheus registry and its endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
}

// EventsConfig configures query and model lifecycle events.
type EventsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration used when no flag is given:
// console logs on stderr, events on, tracing and the metrics endpoint off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "statues",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter: "stdout",
			Insecure: true,
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9090",
		},
		Events: EventsConfig{
			Enabled: true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{
		"otlp": true, "stdout": true, "none": true,
	}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}

	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter needs an endpoint")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	return nil
}
