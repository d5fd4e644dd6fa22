// Package status records the outcome of workflow runs as a YAML run report.
//
// The report describes the most recent run command by command and is
// rewritten after every command, so an interrupted run still leaves an
// accurate picture of how far it got:
//
//	id: 5b0c4c0e-...
//	script: no-flats
//	status: failed
//	commands:
//	  - index: 1
//	    line: 2
//	    command: cd /data/m42/darks
//	    status: succeeded
//
// Key types:
//   - [Run] is one workflow execution
//   - [Command] is the outcome of a single command within a run
//   - [Writer] persists runs atomically, [Reader] loads them back
package status

import "time"

// Status is the state of a run or of one of its commands.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Command is the outcome of one script command.
type Command struct {
	// Index is the 1-based position of the command in the script.
	Index int `yaml:"index"`

	// Line is the source line, or 0 for generated scripts.
	Line int `yaml:"line,omitempty"`

	// Text is the command as forwarded to the engine, after interpolation.
	Text string `yaml:"command"`

	Status  Status `yaml:"status"`
	Message string `yaml:"message,omitempty"`

	Started  time.Time     `yaml:"started,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
}

// Run is one execution of a workflow script.
type Run struct {
	ID     string `yaml:"id"`
	Script string `yaml:"script"`

	// Dir is the directory the run started in.
	Dir string `yaml:"dir"`

	Requires      string `yaml:"requires,omitempty"`
	EngineVersion string `yaml:"engine_version,omitempty"`
	DryRun        bool   `yaml:"dry_run,omitempty"`

	Status Status `yaml:"status"`
	Error  string `yaml:"error,omitempty"`

	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished,omitempty"`

	Commands []Command `yaml:"commands"`
}

// NewRun creates a pending run with one pending command per entry in texts.
func NewRun(id, script, dir string, texts []string, lines []int) *Run {
	r := &Run{
		ID:       id,
		Script:   script,
		Dir:      dir,
		Status:   StatusPending,
		Commands: make([]Command, len(texts)),
	}
	for i, text := range texts {
		r.Commands[i] = Command{Index: i + 1, Text: text, Status: StatusPending}
		if i < len(lines) {
			r.Commands[i].Line = lines[i]
		}
	}
	return r
}

// Count returns the number of commands in state s.
func (r *Run) Count(s Status) int {
	n := 0
	for _, c := range r.Commands {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed command, or nil.
func (r *Run) Failed() *Command {
	for i := range r.Commands {
		if r.Commands[i].Status == StatusFailed {
			return &r.Commands[i]
		}
	}
	return nil
}

// SkipPending marks every pending command as skipped.
func (r *Run) SkipPending() {
	for i := range r.Commands {
		if r.Commands[i].Status == StatusPending {
			r.Commands[i].Status = StatusSkipped
		}
	}
}

// Duration returns how long the run took, or 0 if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
