// Package script parses Siril workflow scripts (.ssf files).
//
// A script is plain text with one engine command per line:
//
//	# build the master dark
//	requires 1.2.0
//	cd darks
//	convert dark -out=../process
//	cd ../process
//	stack dark rej 3 3 -nonorm -out=../masters/dark_stacked
//
// Lines starting with '#' and blank lines are ignored. Tokens are split the
// way a POSIX shell splits words, so quoted values may contain spaces. A
// backslash escapes the next character; write paths with forward slashes.
//
// Key types:
//   - [Script] is the parsed, immutable workflow
//   - [Command] is a single verb with its arguments
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"
)

// RequiresVerb is the directive declaring the minimum engine version.
const RequiresVerb = "requires"

// Script is an ordered sequence of commands plus an optional minimum engine
// version. Scripts are read once and never mutated.
type Script struct {
	// Name identifies the script in output and run records, usually the
	// file name or the built-in workflow name.
	Name string

	// Requires is the minimum engine version, or nil when the script has
	// no requires directive.
	Requires *semver.Version

	// Commands are the engine commands in file order, excluding the
	// requires directive.
	Commands []Command
}

// ParseError reports a problem at a specific script line.
type ParseError struct {
	Name string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Name, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile reads and parses the script at path. The script is named after
// the file's base name.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	return Parse(filepath.Base(path), f)
}

// ParseString parses script text held in memory.
func ParseString(name, text string) (*Script, error) {
	return Parse(name, strings.NewReader(text))
}

// Parse reads a script from r.
//
// Parsing fails on unbalanced quotes, a malformed or repeated requires
// directive, or a requires directive that follows other commands.
func Parse(name string, r io.Reader) (*Script, error) {
	s := &Script{Name: name}
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens, err := shellquote.Split(line)
		if err != nil {
			return nil, &ParseError{Name: name, Line: lineNum, Err: err}
		}
		if len(tokens) == 0 {
			continue
		}

		cmd := Command{Verb: strings.ToLower(tokens[0]), Args: tokens[1:], Line: lineNum}
		if cmd.Verb == RequiresVerb {
			if err := s.setRequires(cmd); err != nil {
				return nil, &ParseError{Name: name, Line: lineNum, Err: err}
			}
			continue
		}
		s.Commands = append(s.Commands, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", name, err)
	}

	return s, nil
}

func (s *Script) setRequires(cmd Command) error {
	if s.Requires != nil {
		return fmt.Errorf("duplicate requires directive")
	}
	if len(s.Commands) > 0 {
		return fmt.Errorf("requires must precede all commands")
	}
	if len(cmd.Args) != 1 {
		return fmt.Errorf("requires takes exactly one version argument")
	}
	v, err := semver.NewVersion(cmd.Args[0])
	if err != nil {
		return fmt.Errorf("invalid requires version %q: %w", cmd.Args[0], err)
	}
	s.Requires = v
	return nil
}

// Verbs returns the verb of each command in order.
func (s *Script) Verbs() []string {
	verbs := make([]string, len(s.Commands))
	for i, c := range s.Commands {
		verbs[i] = c.Verb
	}
	return verbs
}

// Outputs returns the artifact names the script writes, as they appear in
// the script text, in first-appearance order. The result depends only on
// the script text.
func (s *Script) Outputs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, c := range s.Commands {
		switch c.Verb {
		case "stack":
			if o, ok := c.Flag("out"); ok {
				add(o)
			} else if seq := c.Arg(0); seq != "" {
				add(seq + "_stacked")
			}
		case "save", "savefits", "savetif", "savetif8", "savetif32", "savejpg", "savepng", "savepnm", "savebmp":
			add(c.Arg(0))
		case "seqstat":
			add(c.Arg(1))
		}
	}
	return out
}

// String renders the script back into engine syntax.
func (s *Script) String() string {
	var b strings.Builder
	if s.Requires != nil {
		fmt.Fprintf(&b, "%s %s\n", RequiresVerb, s.Requires.Original())
	}
	for _, c := range s.Commands {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}
