// Package config defines the global configuration structure for the eventline
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"eventline/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"eventline"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	Scheduler SchedulerConfig

	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// TransitionQueue is the SQS queue URL the scheduler publishes applied
	// transitions to. Empty disables publication (local development).
	TransitionQueue string `envconfig:"SQS_TRANSITIONS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SchedulerConfig holds control-loop tuning parameters.
type SchedulerConfig struct {
	// ApplyTimeout bounds each StatusApplier call so a stalled store cannot
	// wedge the loop.
	ApplyTimeout time.Duration `envconfig:"SCHED_APPLY_TIMEOUT" default:"5s"`

	// RetryMinWait and RetryMaxWait bound the exponential backoff applied to
	// a trigger whose status application failed.
	RetryMinWait time.Duration `envconfig:"SCHED_RETRY_MIN_WAIT" default:"500ms"`
	RetryMaxWait time.Duration `envconfig:"SCHED_RETRY_MAX_WAIT" default:"30s"`

	// StartupScanTimeout bounds the full event scan performed by Start.
	StartupScanTimeout time.Duration `envconfig:"SCHED_STARTUP_SCAN_TIMEOUT" default:"30s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Eventline"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}
