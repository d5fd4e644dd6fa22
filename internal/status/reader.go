package status

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultReportPath is the run report location relative to the workflow
// directory.
const DefaultReportPath = ".sirilflow/last-run.yaml"

// ResolvePath determines the run report location.
//
// Resolution order:
//  1. SIRILFLOW_REPORT_PATH environment variable (used as-is if set)
//  2. Explicit reportPath parameter, joined to basePath when relative
//  3. [DefaultReportPath] under basePath
func ResolvePath(basePath, reportPath string) string {
	if envPath := os.Getenv("SIRILFLOW_REPORT_PATH"); envPath != "" {
		return envPath
	}

	if reportPath == "" {
		reportPath = DefaultReportPath
	}
	if filepath.IsAbs(reportPath) {
		return reportPath
	}
	return filepath.Join(basePath, reportPath)
}

// Reader reads the run report.
type Reader struct {
	path string
}

// NewReader creates a new [Reader] for the report at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Read loads and validates the report.
func (r *Reader) Read() (*Run, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	if !run.Status.IsValid() {
		return nil, fmt.Errorf("run report has invalid status %q", run.Status)
	}
	for _, c := range run.Commands {
		if !c.Status.IsValid() {
			return nil, fmt.Errorf("run report command %d has invalid status %q", c.Index, c.Status)
		}
	}

	return &run, nil
}
