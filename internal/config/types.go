// Package config provides configuration loading and management for sirilflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults work out of the box when siril-cli is on the
// PATH.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [EngineConfig] contains siril-cli binary settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SIRILFLOW_ prefix)
//  2. Config file specified by SIRILFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/sirilflow/config.yaml
//     - macOS: ~/Library/Application Support/sirilflow/config.yaml
//     - Windows: %APPDATA%\sirilflow\config.yaml
//  4. ./sirilflow.yaml
//  5. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Engine contains siril-cli configuration.
	Engine EngineConfig `mapstructure:"engine"`

	// Variables are interpolated into script arguments as $NAME or ${NAME}.
	// Values given on the command line take precedence. Names are upper-cased
	// on load.
	Variables map[string]string `mapstructure:"variables"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Report contains run report configuration.
	Report ReportConfig `mapstructure:"report"`

	// History contains run history database configuration.
	History HistoryConfig `mapstructure:"history"`

	// Logging contains diagnostic logging configuration.
	Logging LoggingConfig `mapstructure:"logging"`
}

// EngineConfig contains siril-cli configuration.
type EngineConfig struct {
	// BinaryPath is the path to the siril-cli binary.
	// Default: "siril-cli" (assumes it is in PATH).
	// Can be overridden with SIRILFLOW_ENGINE_PATH environment variable.
	BinaryPath string `mapstructure:"binary_path"`

	// StartTimeout bounds how long to wait for the engine to accept commands.
	// Default: 30s
	StartTimeout time.Duration `mapstructure:"start_timeout"`

	// FITSExtensions are tried, in order, when a calibration master is
	// referenced without an extension.
	// Default: [".fit", ".fits", ".fts"]
	FITSExtensions []string `mapstructure:"fits_extensions"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// TruncateLength is the maximum length of a displayed command or log line.
	// Longer lines are truncated with "..." suffix.
	// Default: 100
	TruncateLength int `mapstructure:"truncate_length"`

	// ShowEngineLog prints the engine's log lines while commands run.
	// Default: false
	ShowEngineLog bool `mapstructure:"show_engine_log"`
}

// ReportConfig controls the YAML report of the most recent run.
type ReportConfig struct {
	// Path is the report location. Relative paths are resolved against the
	// workflow directory.
	// Default: ".sirilflow/last-run.yaml"
	Path string `mapstructure:"path"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	// Enabled turns history recording on.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// DatabasePath is the SQLite file. Empty means history.db in the user
	// config directory.
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains diagnostic logging configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: "warn"
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	// Default: "text"
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			BinaryPath:     "siril-cli",
			StartTimeout:   30 * time.Second,
			FITSExtensions: []string{".fit", ".fits", ".fts"},
		},
		Variables: map[string]string{},
		Output: OutputConfig{
			TruncateLength: 100,
			ShowEngineLog:  false,
		},
		Report: ReportConfig{
			Path: ".sirilflow/last-run.yaml",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
