package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sirilflow/internal/catalog"
	"sirilflow/internal/config"
	"sirilflow/internal/engine"
	"sirilflow/internal/logging"
	"sirilflow/internal/output"
)

// testApp bundles an [App] wired to a mock engine with its captured output.
type testApp struct {
	*App
	Mock *engine.MockEngine
	Out  *bytes.Buffer
}

// newTestApp creates an App with a mock engine, a buffered printer and a
// history database in a temporary directory.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.History.DatabasePath = filepath.Join(t.TempDir(), "history.db")
	cfg.Output.TruncateLength = 0

	mock := &engine.MockEngine{EngineVersion: "1.3.2"}
	buf := &bytes.Buffer{}

	return &testApp{
		App: &App{
			Config:  cfg,
			Engine:  mock,
			Printer: output.NewPrinterWithWriter(buf),
			Catalog: cat,
			Logger:  logging.New("error", "text", &bytes.Buffer{}),
		},
		Mock: mock,
		Out:  buf,
	}
}

// execute runs the root command with args and returns its error.
func (a *testApp) execute(args ...string) error {
	rootCmd := NewRootCommand(a.App)
	rootCmd.SetOut(a.Out)
	rootCmd.SetErr(a.Out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// observatory creates a workflow directory with the given subdirectories
// and files. Entries ending in ".fit" or ".csv" are created as empty
// files, everything else as directories.
func observatory(t *testing.T, entries ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, e := range entries {
		path := filepath.Join(dir, e)
		switch filepath.Ext(e) {
		case ".fit", ".csv", ".ssf", ".env":
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, nil, 0644))
		default:
			require.NoError(t, os.MkdirAll(path, 0755))
		}
	}
	return dir
}

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
