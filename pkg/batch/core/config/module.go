// Package config provides core configuration structures and utilities for the importer.
// This module defines Fx providers for configuration-related components.
package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Importer.System.Logging
}

// NewImportConfigProvider extracts the import settings from *Config.
func NewImportConfigProvider(cfg *Config) ImportConfig {
	return cfg.Importer.Import
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewImportConfigProvider),
)
