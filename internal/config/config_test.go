package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config lookup at an empty temporary directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("SIRILFLOW_CONFIG_PATH", "")
	t.Setenv("SIRILFLOW_ENGINE_PATH", "")
	t.Setenv("SIRILFLOW_ENGINE_BINARY_PATH", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PWD", dir)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "siril-cli", cfg.Engine.BinaryPath)
	assert.Equal(t, 30*time.Second, cfg.Engine.StartTimeout)
	assert.Equal(t, []string{".fit", ".fits", ".fts"}, cfg.Engine.FITSExtensions)
	assert.Equal(t, 100, cfg.Output.TruncateLength)
	assert.False(t, cfg.Output.ShowEngineLog)
	assert.Equal(t, ".sirilflow/last-run.yaml", cfg.Report.Path)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NotNil(t, cfg.Variables)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_Load_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoader_LoadFromFile(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
engine:
  binary_path: /opt/siril/bin/siril-cli
  start_timeout: 45s
  fits_extensions: [".fits"]
variables:
  OFFSET: "2048"
  gain: "120"
output:
  show_engine_log: true
history:
  enabled: false
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := NewLoader().LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "/opt/siril/bin/siril-cli", cfg.Engine.BinaryPath)
	assert.Equal(t, 45*time.Second, cfg.Engine.StartTimeout)
	assert.Equal(t, []string{".fits"}, cfg.Engine.FITSExtensions)
	assert.Equal(t, map[string]string{"OFFSET": "2048", "GAIN": "120"}, cfg.Variables)
	assert.True(t, cfg.Output.ShowEngineLog)
	assert.Equal(t, 100, cfg.Output.TruncateLength, "unset keys keep defaults")
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoader_LoadFromFile_NotFound(t *testing.T) {
	isolate(t)

	_, err := NewLoader().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_Load_ConfigPathEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  path: reports/run.yaml\n"), 0644))
	t.Setenv("SIRILFLOW_CONFIG_PATH", path)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "reports/run.yaml", cfg.Report.Path)
}

func TestLoader_Load_WorkingDirectoryFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sirilflow.yaml"), []byte("output:\n  truncate_length: 40\n"), 0644))

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Output.TruncateLength)
}

func TestLoader_Load_WithEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("SIRILFLOW_ENGINE_PATH", "/env/siril-cli")
	t.Setenv("SIRILFLOW_LOGGING_LEVEL", "debug")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "/env/siril-cli", cfg.Engine.BinaryPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.BinaryPath = ""
	cfg.Engine.FITSExtensions = []string{"fit"}
	cfg.Logging.Format = "xml"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary_path")
	assert.Contains(t, err.Error(), "fits_extensions")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestConfigPaths(t *testing.T) {
	dir := isolate(t)

	configDir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "sirilflow", filepath.Base(configDir))

	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configDir, "config.yaml"), path)

	historyPath, err := DefaultHistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configDir, "history.db"), historyPath)
	assert.True(t, strings.HasPrefix(configDir, dir))
}
