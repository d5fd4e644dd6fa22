package workflow

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sirilflow/internal/script"
)

// Context is the execution state a script runs in: the working directory,
// changed by cd, and the variables interpolated into command arguments.
type Context struct {
	Dir  string
	Vars map[string]string
}

// NewContext creates a [Context] rooted at dir, which is made absolute.
// The vars map is copied.
func NewContext(dir string, vars map[string]string) (Context, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Context{}, fmt.Errorf("%w: working directory %s: %v", ErrMissingInput, abs, err)
	}
	if !info.IsDir() {
		return Context{}, fmt.Errorf("%w: working directory %s is not a directory", ErrMissingInput, abs)
	}

	c := Context{Dir: abs, Vars: make(map[string]string, len(vars))}
	maps.Copy(c.Vars, vars)
	return c, nil
}

// Resolve returns p relative to the context directory, or p itself if it
// is absolute.
func (c Context) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Dir, filepath.FromSlash(p))
}

// varPattern matches $NAME and ${NAME}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Interpolate replaces $NAME and ${NAME} with context variables. Unknown
// names are left as written so the engine can resolve its own keywords.
func (c Context) Interpolate(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.Trim(m, "${}")
		if v, ok := c.Vars[name]; ok {
			return v
		}
		return m
	})
}

// InterpolateCommand applies [Context.Interpolate] to every argument.
func (c Context) InterpolateCommand(cmd script.Command) script.Command {
	args := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = c.Interpolate(a)
	}
	return cmd.WithArgs(args)
}
