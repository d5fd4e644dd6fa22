package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// appName names the user config directory.
const appName = "sirilflow"

// Loader handles configuration loading with Viper.
//
// Create with [NewLoader], then call [Loader.Load] for the standard search
// order or [Loader.LoadFromFile] for an explicit file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader with environment bindings.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("SIRILFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	// Short alias for the engine binary.
	_ = v.BindEnv("engine.binary_path", "SIRILFLOW_ENGINE_PATH", "SIRILFLOW_ENGINE_BINARY_PATH")

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.binary_path", d.Engine.BinaryPath)
	v.SetDefault("engine.start_timeout", d.Engine.StartTimeout)
	v.SetDefault("engine.fits_extensions", d.Engine.FITSExtensions)
	v.SetDefault("variables", d.Variables)
	v.SetDefault("output.truncate_length", d.Output.TruncateLength)
	v.SetDefault("output.show_engine_log", d.Output.ShowEngineLog)
	v.SetDefault("report.path", d.Report.Path)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.database_path", d.History.DatabasePath)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Load reads configuration from the first file found in the search order
// described in the package documentation. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv("SIRILFLOW_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return l.LoadFromFile(path)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from the given YAML file.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Viper folds keys to lower case; script variables are conventionally
	// upper case.
	vars := make(map[string]string, len(cfg.Variables))
	for k, v := range cfg.Variables {
		vars[strings.ToUpper(k)] = v
	}
	cfg.Variables = vars

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.BinaryPath == "" {
		errs = append(errs, errors.New("engine.binary_path must not be empty"))
	}
	if c.Engine.StartTimeout < 0 {
		errs = append(errs, errors.New("engine.start_timeout must not be negative"))
	}
	for _, ext := range c.Engine.FITSExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("engine.fits_extensions: %q must start with a dot", ext))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func searchPaths() []string {
	var paths []string
	if p, err := DefaultConfigPath(); err == nil {
		paths = append(paths, p)
	}
	return append(paths, "sirilflow.yaml")
}

// ConfigDir returns the sirilflow directory under the platform user config
// directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the path of config.yaml in [ConfigDir].
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryPath returns the path of history.db in [ConfigDir].
func DefaultHistoryPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}
