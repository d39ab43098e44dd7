package config

import (
	"fmt"

	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

const (
	// WriterGorm persists recipients through the gorm upsert path.
	WriterGorm = "gorm"
	// WriterPgx persists recipients through pgx COPY into a staging table.
	WriterPgx = "pgx"

	BackendPrometheus = "prometheus"
	BackendOTLP       = "otlp"
	BackendNoop       = "noop"

	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterNoop     = "noop"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// SQLLevel is the level passed to the gorm logger bridge ("SILENT", "ERROR", "WARN", "INFO").
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// ImportConfig holds the settings handed to the continuation controller and its collaborators.
type ImportConfig struct {
	// ChunkSize is the number of recipients per persistence call. It may not exceed model.MaxChunkSize.
	ChunkSize int `yaml:"chunk_size"`
	// ExecutionThresholdMs is the remaining time below which no further chunk is started.
	ExecutionThresholdMs int64 `yaml:"execution_threshold_ms"`
	// ExecutionBudgetMs is the wall-clock budget of one worker execution.
	ExecutionBudgetMs int64 `yaml:"execution_budget_ms"`
	// StallLimit is the number of consecutive zero-progress chunks tolerated. Negative disables the guard.
	StallLimit int `yaml:"stall_limit"`
	// StorageRef names the storage connection holding source files.
	StorageRef string `yaml:"storage_ref"`
	// DatabaseRef names the database connection holding recipients and status reports.
	DatabaseRef string `yaml:"database_ref"`
	// EmailColumn is the header used for the email when the column mapping does not target "email".
	EmailColumn string `yaml:"email_column"`
	// Writer selects the PersistBatch implementation ("gorm" or "pgx").
	Writer string `yaml:"writer"`
	// WritesPerSecond throttles recipient writes. Zero means unlimited.
	WritesPerSecond float64 `yaml:"writes_per_second"`
	// SkipMigrations disables schema migrations on start.
	SkipMigrations bool `yaml:"skip_migrations"`
}

// DispatchConfig configures the Redis Stream used for checkpoint re-dispatch.
type DispatchConfig struct {
	Addr             string `yaml:"addr"`
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	Stream           string `yaml:"stream"`
	DeadLetterStream string `yaml:"dead_letter_stream"`
	Group            string `yaml:"group"`
	Consumer         string `yaml:"consumer"`
	// BlockMs is how long a worker blocks on XREADGROUP before polling again.
	BlockMs int64 `yaml:"block_ms"`
	// MaxAttempts is how often a checkpoint whose execution failed with a retryable error is run
	// before it is dead-lettered.
	MaxAttempts int `yaml:"max_attempts"`
}

// MetricsConfig selects and configures the metric backend.
type MetricsConfig struct {
	// Backend is "prometheus", "otlp" or "noop".
	Backend string `yaml:"backend"`
	// ListenAddr is where the Prometheus registry is served in worker mode. Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
	// OTLPEndpoint is the collector endpoint for the otlp backend.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPProtocol is "grpc" or "http".
	OTLPProtocol          string `yaml:"otlp_protocol"`
	OTLPInsecure          bool   `yaml:"otlp_insecure"`
	ExportIntervalSeconds int    `yaml:"export_interval_seconds"`
	// AsyncBufferSize is the queue size of the asynchronous recorder wrapper. Zero or less uses 100.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// TracingConfig selects and configures the span exporter.
type TracingConfig struct {
	// Exporter is "otlp-grpc", "otlp-http" or "noop".
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// ArchiveConfig configures the parquet archive of corrupted emails.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	StorageRef      string `yaml:"storage_ref"`
	Bucket          string `yaml:"bucket"`
	OutputBaseDir   string `yaml:"output_base_dir"`
	CompressionType string `yaml:"compression_type"`
}

// AdapterConfig holds the named adapter sections. Each entry is decoded lazily by its provider.
type AdapterConfig struct {
	Database map[string]interface{} `yaml:"database"`
	Storage  map[string]interface{} `yaml:"storage"`
}

// ImporterConfig holds all configuration under the "importer" top-level key.
type ImporterConfig struct {
	System   SystemConfig   `yaml:"system"`
	Import   ImportConfig   `yaml:"import"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Importer ImporterConfig `yaml:"importer"`
	// EmbeddedConfig holds the raw embedded YAML, not loaded from YAML itself.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is the configuration instance shared across the application, set by NewConfigProvider.
var GlobalConfig *Config

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Importer: ImporterConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Import: ImportConfig{
				ChunkSize:            model.MaxChunkSize,
				ExecutionThresholdMs: model.DefaultExecutionThresholdMs,
				ExecutionBudgetMs:    15 * 60 * 1000,
				StallLimit:           3,
				StorageRef:           "source",
				DatabaseRef:          "recipients",
				EmailColumn:          "email",
				Writer:               WriterGorm,
			},
			Dispatch: DispatchConfig{
				Addr:             "localhost:6379",
				Stream:           "recipient_import",
				DeadLetterStream: "recipient_import_dlq",
				Group:            "importers",
				Consumer:         "importer-1",
				BlockMs:          5000,
				MaxAttempts:      3,
			},
			Metrics: MetricsConfig{
				Backend:               BackendPrometheus,
				ListenAddr:            ":9102",
				OTLPProtocol:          "grpc",
				ExportIntervalSeconds: 15,
			},
			Tracing: TracingConfig{
				Exporter:    ExporterNoop,
				ServiceName: "recipient-importer",
			},
			Archive: ArchiveConfig{
				OutputBaseDir:   "rejects",
				CompressionType: "SNAPPY",
			},
			Adapter: AdapterConfig{
				Database: map[string]interface{}{},
				Storage:  map[string]interface{}{},
			},
		},
	}
}

// Validate checks the loaded configuration for values the importer cannot run with.
func Validate(cfg *Config) error {
	imp := cfg.Importer.Import
	if imp.ChunkSize < 1 || imp.ChunkSize > model.MaxChunkSize {
		return exception.NewBatchErrorf(moduleName, "import.chunk_size must be between 1 and %d, got %d", model.MaxChunkSize, imp.ChunkSize)
	}
	if imp.ExecutionThresholdMs <= 0 {
		return exception.NewBatchErrorf(moduleName, "import.execution_threshold_ms must be positive, got %d", imp.ExecutionThresholdMs)
	}
	if imp.ExecutionBudgetMs <= imp.ExecutionThresholdMs {
		return exception.NewBatchErrorf(moduleName, "import.execution_budget_ms (%d) must exceed import.execution_threshold_ms (%d)", imp.ExecutionBudgetMs, imp.ExecutionThresholdMs)
	}
	switch imp.Writer {
	case WriterGorm, WriterPgx:
	default:
		return exception.NewBatchErrorf(moduleName, "import.writer must be %q or %q, got %q", WriterGorm, WriterPgx, imp.Writer)
	}
	if imp.WritesPerSecond < 0 {
		return exception.NewBatchErrorf(moduleName, "import.writes_per_second must not be negative")
	}
	switch cfg.Importer.Metrics.Backend {
	case BackendPrometheus, BackendOTLP, BackendNoop:
	default:
		return exception.NewBatchErrorf(moduleName, "metrics.backend %q is not supported", cfg.Importer.Metrics.Backend)
	}
	switch cfg.Importer.Tracing.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP, ExporterNoop:
	default:
		return exception.NewBatchErrorf(moduleName, "tracing.exporter %q is not supported", cfg.Importer.Tracing.Exporter)
	}
	if cfg.Importer.Dispatch.Stream == "" {
		return exception.NewBatchError(moduleName, "dispatch.stream must be set", nil, false, false)
	}
	if cfg.Importer.Archive.Enabled && cfg.Importer.Archive.StorageRef == "" {
		return exception.NewBatchError(moduleName, "archive.storage_ref must be set when the archive is enabled", nil, false, false)
	}
	return nil
}

// EffectiveStallLimit returns the stall guard in effect: zero when disabled.
func (c ImportConfig) EffectiveStallLimit() int {
	if c.StallLimit < 0 {
		return 0
	}
	return c.StallLimit
}

// String renders the import settings for startup logs.
func (c ImportConfig) String() string {
	return fmt.Sprintf("chunk_size=%d threshold_ms=%d budget_ms=%d writer=%s storage=%s database=%s",
		c.ChunkSize, c.ExecutionThresholdMs, c.ExecutionBudgetMs, c.Writer, c.StorageRef, c.DatabaseRef)
}
