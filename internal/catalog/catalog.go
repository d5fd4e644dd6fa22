// Package catalog provides the built-in workflow scripts.
//
// The scripts are embedded in the binary and described by catalog.yaml:
//
//	workflows:
//	  - name: master-dark
//	    file: master-dark.ssf
//	    description: Stack dark frames into a master dark
//	    inputs: [darks]
//	    workdirs: [process, masters]
//
// Inputs are directories the user must provide. Workdirs are directories
// the workflow writes into and that are created before it runs.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sirilflow/internal/script"
)

//go:embed catalog.yaml scripts/*.ssf
var files embed.FS

// ErrUnknownWorkflow indicates a name that is neither a built-in workflow
// nor an existing script file.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Workflow describes one built-in workflow.
type Workflow struct {
	Name        string   `yaml:"name"`
	File        string   `yaml:"file"`
	Description string   `yaml:"description"`
	Inputs      []string `yaml:"inputs"`
	WorkDirs    []string `yaml:"workdirs"`
}

// Catalog is the set of built-in workflows in catalog order.
type Catalog struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Default loads the embedded catalog.
func Default() (*Catalog, error) {
	data, err := files.ReadFile("catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse reads a catalog from YAML and validates it.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool)
	for i, w := range c.Workflows {
		if w.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: name is required", i+1)
		}
		if w.File == "" {
			return nil, fmt.Errorf("catalog entry %s: file is required", w.Name)
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("catalog entry %s: duplicate name", w.Name)
		}
		seen[w.Name] = true
	}
	if len(c.Workflows) == 0 {
		return nil, fmt.Errorf("catalog contains no workflows")
	}
	return &c, nil
}

// Names returns the workflow names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Workflows))
	for i, w := range c.Workflows {
		names[i] = w.Name
	}
	return names
}

// Get returns the named workflow.
func (c *Catalog) Get(name string) (*Workflow, bool) {
	for i := range c.Workflows {
		if c.Workflows[i].Name == name {
			return &c.Workflows[i], true
		}
	}
	return nil, false
}

// Source returns the script text of the named workflow.
func (c *Catalog) Source(name string) (string, error) {
	w, ok := c.Get(name)
	if !ok {
		return "", c.unknown(name)
	}
	data, err := files.ReadFile("scripts/" + w.File)
	if err != nil {
		return "", fmt.Errorf("failed to read built-in workflow %s: %w", name, err)
	}
	return string(data), nil
}

// Script parses the named workflow.
func (c *Catalog) Script(name string) (*script.Script, error) {
	src, err := c.Source(name)
	if err != nil {
		return nil, err
	}
	return script.ParseString(name, src)
}

// Resolve loads a script from arg, which is either a path to an existing
// script file or a built-in workflow name. The workflow is nil for files.
func (c *Catalog) Resolve(arg string) (*script.Script, *Workflow, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		s, err := script.ParseFile(arg)
		return s, nil, err
	}

	w, ok := c.Get(arg)
	if !ok {
		return nil, nil, c.unknown(arg)
	}
	s, err := c.Script(arg)
	return s, w, err
}

func (c *Catalog) unknown(name string) error {
	return fmt.Errorf("%w: %s (built-in workflows: %s)", ErrUnknownWorkflow, name, strings.Join(c.Names(), ", "))
}

// MissingInputs returns the input directories of w that do not exist under
// dir.
func (w *Workflow) MissingInputs(dir string) []string {
	var missing []string
	for _, in := range w.Inputs {
		info, err := os.Stat(filepath.Join(dir, in))
		if err != nil || !info.IsDir() {
			missing = append(missing, in)
		}
	}
	return missing
}

// PrepareWorkDirs creates the work directories of w under dir.
func (w *Workflow) PrepareWorkDirs(dir string) error {
	for _, d := range w.WorkDirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}
