package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

const sampleYAML = `
importer:
  system:
    logging:
      level: DEBUG
  import:
    chunk_size: 20
    execution_threshold_ms: 45000
    storage_ref: uploads
    writer: pgx
  dispatch:
    addr: ${TEST_REDIS_ADDR}
    stream: imports
  adapter:
    database:
      recipients:
        type: sqlite
        database: /tmp/recipients.db
    storage:
      uploads:
        type: local
        base_dir: /tmp/uploads
`

func TestLoadConfig_DefaultsYAMLAndEnv(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis:6380")
	t.Setenv("IMPORTER_IMPORT_EXECUTION_BUDGET_MS", "120000")
	t.Setenv("IMPORTER_METRICS_BACKEND", "noop")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)

	imp := cfg.Importer.Import
	assert.Equal(t, 20, imp.ChunkSize)
	assert.Equal(t, int64(45000), imp.ExecutionThresholdMs)
	assert.Equal(t, int64(120000), imp.ExecutionBudgetMs)
	assert.Equal(t, "uploads", imp.StorageRef)
	assert.Equal(t, "recipients", imp.DatabaseRef, "default kept")
	assert.Equal(t, config.WriterPgx, imp.Writer)
	assert.Equal(t, 3, imp.EffectiveStallLimit())

	assert.Equal(t, "redis:6380", cfg.Importer.Dispatch.Addr)
	assert.Equal(t, "imports", cfg.Importer.Dispatch.Stream)
	assert.Equal(t, "importers", cfg.Importer.Dispatch.Group)
	assert.Equal(t, config.BackendNoop, cfg.Importer.Metrics.Backend)
	assert.Equal(t, "DEBUG", cfg.Importer.System.Logging.Level)

	require.Contains(t, cfg.Importer.Adapter.Database, "recipients")
	require.Contains(t, cfg.Importer.Adapter.Storage, "uploads")
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, model.MaxChunkSize, cfg.Importer.Import.ChunkSize)
	assert.Equal(t, int64(60000), cfg.Importer.Import.ExecutionThresholdMs)
	assert.NoError(t, config.Validate(cfg))
}

func TestValidate_RejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"chunk too large":       func(c *config.Config) { c.Importer.Import.ChunkSize = model.MaxChunkSize + 1 },
		"chunk zero":            func(c *config.Config) { c.Importer.Import.ChunkSize = 0 },
		"budget under thresh":   func(c *config.Config) { c.Importer.Import.ExecutionBudgetMs = 1000 },
		"unknown writer":        func(c *config.Config) { c.Importer.Import.Writer = "dynamo" },
		"unknown backend":       func(c *config.Config) { c.Importer.Metrics.Backend = "statsd" },
		"unknown exporter":      func(c *config.Config) { c.Importer.Tracing.Exporter = "zipkin" },
		"archive without ref":   func(c *config.Config) { c.Importer.Archive.Enabled = true },
		"negative write rate":   func(c *config.Config) { c.Importer.Import.WritesPerSecond = -1 },
		"empty dispatch stream": func(c *config.Config) { c.Importer.Dispatch.Stream = "" },
	}
	for name, mutate := range cases {
		cfg := config.NewConfig()
		mutate(cfg)
		err := config.Validate(cfg)
		assert.Error(t, err, name)
		var be *exception.BatchError
		assert.True(t, errors.As(err, &be), name)
		assert.Equal(t, "config", be.Module, name)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("importer: [unclosed"))
	assert.Error(t, err)
}

func TestEffectiveStallLimit_NegativeDisables(t *testing.T) {
	imp := config.ImportConfig{StallLimit: -1}
	assert.Equal(t, 0, imp.EffectiveStallLimit())
}
