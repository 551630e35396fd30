// Package config defines the global configuration structure for the PerfPulse
// analytics platform. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values come from the OS environment, optionally seeded from a .env file for
// local development. Any missing required value or invalid format fails the
// process immediately on startup.
package config

import (
	"time"

	"perfpulse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System metadata.
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"perfpulse"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations.
	Server    ServerConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	Analytics AnalyticsConfig
	Sentiment SentimentConfig

	// Build metadata (injected via ldflags, not env).
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ReportQueueURL is the SQS queue report generation jobs are enqueued to.
	ReportQueueURL string `envconfig:"SQS_REPORT_JOBS" validate:"required,url"`

	// MetricsNamespace is the CloudWatch namespace telemetry is emitted to.
	// Empty disables emission.
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"PerfPulse"`

	// EndpointURL points AWS clients at LocalStack; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AnalyticsConfig holds aggregation and retention tuning.
type AnalyticsConfig struct {
	// SnapshotRetention bounds how long computed snapshots are kept before
	// maintenance cleanup removes them.
	SnapshotRetention time.Duration `envconfig:"SNAPSHOT_RETENTION" default:"8760h"`

	// ReportRetention bounds how long generated report documents are kept.
	ReportRetention time.Duration `envconfig:"REPORT_RETENTION" default:"17520h"`

	// ScheduleBatchSize bounds how many due schedules one scheduler run
	// processes.
	ScheduleBatchSize int `envconfig:"SCHEDULE_BATCH_SIZE" default:"100"`
}

// SentimentConfig holds the feedback sentiment scoring service client
// configuration.
type SentimentConfig struct {
	// BaseURL is the sentiment service endpoint; empty disables remote
	// scoring.
	BaseURL string        `envconfig:"SENTIMENT_API_URL"`
	APIKey  SecretString  `envconfig:"SENTIMENT_API_KEY"`
	Timeout time.Duration `envconfig:"SENTIMENT_TIMEOUT" default:"5s"`
}

// Enabled reports whether remote sentiment scoring is configured.
func (c SentimentConfig) Enabled() bool {
	return c.BaseURL != ""
}

// BuildInfo holds build-time metadata injected via linker flags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}
