package catalog

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"sirilflow/internal/script"
)

// DefaultSessionPrefix is the directory prefix that marks a night's session.
const DefaultSessionPrefix = "session"

// ErrNoSessions indicates the root directory holds no session directories.
var ErrNoSessions = errors.New("no session directories found")

// MultisessionWorkflow describes the generated multi-session workflow.
// [Multisession] fills in the per-session inputs and work directories.
var MultisessionWorkflow = Workflow{
	Name:        "multisession",
	Description: "Calibrate each session's lights, merge them, drizzle-register and stack",
	WorkDirs:    []string{"process"},
}

var registerDrizzle = []string{"-drizzle", "-scale=1.0", "-pixfrac=1.0", "-kernel=square"}

func stackArgs(out string) []string {
	return []string{"rej", "3", "3", "-norm=addscale", "-output_norm", "-rgb_equal", "-32b", "-out=" + out}
}

// Multisession generates a script that calibrates the lights of every
// directory in root whose name starts with prefix, merges the calibrated
// sequences, registers them with drizzle, stacks the result and
// plate-solves it.
//
// Each session directory must contain lights/ and masters/ with
// dark_stacked and flat_stacked. Sessions are processed in name order.
// The returned workflow lists each session's lights/ and masters/ as
// inputs and its process/ as a work directory. The shared process/ is only
// needed when there is more than one session to merge.
func Multisession(root, prefix string) (*script.Script, *Workflow, error) {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			sessions = append(sessions, e.Name())
		}
	}
	if len(sessions) == 0 {
		return nil, nil, fmt.Errorf("%w: no directory in %s starts with %q", ErrNoSessions, root, prefix)
	}

	s := &script.Script{
		Name:     MultisessionWorkflow.Name,
		Requires: semver.MustParse("1.3.0"),
	}
	add := func(verb string, args ...string) {
		s.Commands = append(s.Commands, script.NewCommand(verb, args...))
	}

	wf := MultisessionWorkflow
	wf.WorkDirs = nil

	var merged []string
	for _, session := range sessions {
		wf.Inputs = append(wf.Inputs, path.Join(session, "lights"), path.Join(session, "masters"))
		wf.WorkDirs = append(wf.WorkDirs, path.Join(session, "process"))

		add("cd", path.Join(session, "lights"))
		add("convert", "light", "-out=../process")
		add("cd", "../process")
		add("calibrate", "light", "-dark=../masters/dark_stacked", "-flat=../masters/flat_stacked",
			"-cc=dark", "-cfa", "-equalize_cfa")
		add("cd", "../..")
		merged = append(merged, path.Join("..", session, "process", "pp_light"))
	}

	// merge needs at least two sequences. A single session is registered
	// and stacked in its own process directory.
	if len(sessions) == 1 {
		add("cd", path.Join(sessions[0], "process"))
		add("register", append([]string{"pp_light"}, registerDrizzle...)...)
		add("stack", append([]string{"r_pp_light"}, stackArgs("../../result")...)...)
		add("cd", "../..")
	} else {
		wf.WorkDirs = append(append([]string(nil), MultisessionWorkflow.WorkDirs...), wf.WorkDirs...)
		add("cd", "process")
		add("merge", append(merged, "pp_merge")...)
		add("register", append([]string{"pp_merge"}, registerDrizzle...)...)
		add("stack", append([]string{"r_pp_merge"}, stackArgs("../result")...)...)
		add("cd", "..")
	}
	add("load", "result")
	add("platesolve")
	add("save", "result")

	return s, &wf, nil
}
