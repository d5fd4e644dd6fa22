package workflow

import (
	"errors"
	"fmt"

	"sirilflow/internal/stage"
)

// Sentinel errors for workflow runs. Every failure returned by
// [Runner.Run] wraps exactly one of these.
var (
	// ErrVersionMismatch indicates the engine is older than the script's
	// requires directive. No command has been forwarded.
	ErrVersionMismatch = errors.New("engine version too old for script")

	// ErrCommandFailed indicates the engine reported an error for a command.
	ErrCommandFailed = errors.New("command failed")

	// ErrMissingInput indicates a file or directory a command needs does not
	// exist. The command was not forwarded.
	ErrMissingInput = errors.New("missing input")

	// ErrOrderViolation indicates the script uses a sequence before the
	// command that produces it. No command has been forwarded.
	ErrOrderViolation = stage.ErrOrderViolation
)

// CommandError reports the command that stopped a run.
type CommandError struct {
	// Index is the 1-based position of the command in the script.
	Index int

	// Line is the source line of the command, or 0 for generated scripts.
	Line int

	// Command is the command text after interpolation.
	Command string

	// Message is the engine's explanation, if it gave one.
	Message string

	Err error
}

func (e *CommandError) Error() string {
	where := fmt.Sprintf("command %d", e.Index)
	if e.Line > 0 {
		where = fmt.Sprintf("command %d (line %d)", e.Index, e.Line)
	}
	return fmt.Sprintf("%s %q: %v", where, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
