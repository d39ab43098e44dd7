package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig loads configuration from the embedded YAML, a .env file and environment variables.
// Precedence, lowest first: NewConfig defaults, YAML, environment.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not loaded: %v", envFilePath, err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders in embedded config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// LoadConfig loads and validates configuration. It is expected to be called once during startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and publishes *Config.
// It also sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Importer.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Importer.System.Logging.Level)
	return cfg, nil
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	mergeSystemConfig(&dest.Importer.System, &source.Importer.System)
	mergeImportConfig(&dest.Importer.Import, &source.Importer.Import)
	mergeDispatchConfig(&dest.Importer.Dispatch, &source.Importer.Dispatch)
	mergeMetricsConfig(&dest.Importer.Metrics, &source.Importer.Metrics)
	mergeTracingConfig(&dest.Importer.Tracing, &source.Importer.Tracing)
	mergeArchiveConfig(&dest.Importer.Archive, &source.Importer.Archive)

	for key, value := range source.Importer.Adapter.Database {
		dest.Importer.Adapter.Database[key] = value
	}
	for key, value := range source.Importer.Adapter.Storage {
		dest.Importer.Adapter.Storage[key] = value
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
	if source.Logging.SQLLevel != "" {
		dest.Logging.SQLLevel = source.Logging.SQLLevel
	}
}

func mergeImportConfig(dest, source *ImportConfig) {
	if source.ChunkSize != 0 {
		dest.ChunkSize = source.ChunkSize
	}
	if source.ExecutionThresholdMs != 0 {
		dest.ExecutionThresholdMs = source.ExecutionThresholdMs
	}
	if source.ExecutionBudgetMs != 0 {
		dest.ExecutionBudgetMs = source.ExecutionBudgetMs
	}
	if source.StallLimit != 0 {
		dest.StallLimit = source.StallLimit
	}
	if source.StorageRef != "" {
		dest.StorageRef = source.StorageRef
	}
	if source.DatabaseRef != "" {
		dest.DatabaseRef = source.DatabaseRef
	}
	if source.EmailColumn != "" {
		dest.EmailColumn = source.EmailColumn
	}
	if source.Writer != "" {
		dest.Writer = source.Writer
	}
	if source.WritesPerSecond != 0 {
		dest.WritesPerSecond = source.WritesPerSecond
	}
	if source.SkipMigrations {
		dest.SkipMigrations = true
	}
}

func mergeDispatchConfig(dest, source *DispatchConfig) {
	if source.Addr != "" {
		dest.Addr = source.Addr
	}
	if source.Password != "" {
		dest.Password = source.Password
	}
	if source.DB != 0 {
		dest.DB = source.DB
	}
	if source.Stream != "" {
		dest.Stream = source.Stream
	}
	if source.DeadLetterStream != "" {
		dest.DeadLetterStream = source.DeadLetterStream
	}
	if source.Group != "" {
		dest.Group = source.Group
	}
	if source.Consumer != "" {
		dest.Consumer = source.Consumer
	}
	if source.BlockMs != 0 {
		dest.BlockMs = source.BlockMs
	}
}

func mergeMetricsConfig(dest, source *MetricsConfig) {
	if source.Backend != "" {
		dest.Backend = source.Backend
	}
	if source.ListenAddr != "" {
		dest.ListenAddr = source.ListenAddr
	}
	if source.OTLPEndpoint != "" {
		dest.OTLPEndpoint = source.OTLPEndpoint
	}
	if source.OTLPProtocol != "" {
		dest.OTLPProtocol = source.OTLPProtocol
	}
	if source.ExportIntervalSeconds != 0 {
		dest.ExportIntervalSeconds = source.ExportIntervalSeconds
	}
}

func mergeTracingConfig(dest, source *TracingConfig) {
	if source.Exporter != "" {
		dest.Exporter = source.Exporter
	}
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Insecure {
		dest.Insecure = true
	}
}

func mergeArchiveConfig(dest, source *ArchiveConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.StorageRef != "" {
		dest.StorageRef = source.StorageRef
	}
	if source.Bucket != "" {
		dest.Bucket = source.Bucket
	}
	if source.OutputBaseDir != "" {
		dest.OutputBaseDir = source.OutputBaseDir
	}
	if source.CompressionType != "" {
		dest.CompressionType = source.CompressionType
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// The variable name is the upper-cased chain of yaml tags joined by "_", e.g. IMPORTER_IMPORT_CHUNK_SIZE.
// Map fields are skipped; named adapter sections use ${VAR} placeholders instead.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map, reflect.Slice, reflect.Interface:
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets a string, integer, float or bool field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
