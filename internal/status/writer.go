package status

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Writer writes the run report to a YAML file.
type Writer struct {
	path string
}

// NewWriter creates a new Writer for the report at path.
func NewWriter(path string) *Writer {
	return &Writer{
		path: path,
	}
}

// Path returns the report file path.
func (w *Writer) Path() string {
	return w.path
}

// Record writes run to the report file, replacing its previous content.
func (w *Writer) Record(run *Run) error {
	if !run.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", run.Status)
	}

	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	// Write atomically (write to temp, then rename)
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write run report: %w", err)
	}

	return nil
}
