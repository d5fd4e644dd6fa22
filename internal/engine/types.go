// Package engine is the boundary to the external Siril image-processing
// engine.
//
// Siril runs headless when started with -p. It then reads one command per
// line from a named input pipe and reports on a named output pipe:
//
//	ready
//	status: starting calibrate
//	log: Calibration of sequence pp_light...
//	progress: 42.00%
//	status: success calibrate
//
// Key types:
//   - [Engine] detects the engine version and opens sessions
//   - [Session] forwards commands and waits for their completion status
//   - [Parser] turns output-pipe lines into [Event] values
//   - [SirilEngine] is the production implementation
//
// For testing, use [MockEngine], which records commands without spawning a
// process.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// EventType classifies a line read from the engine output pipe.
type EventType string

const (
	// EventTypeReady is sent once when the engine accepts commands.
	EventTypeReady EventType = "ready"

	// EventTypeLog carries a console log message.
	EventTypeLog EventType = "log"

	// EventTypeStatus reports a command state change. See [Event.State].
	EventTypeStatus EventType = "status"

	// EventTypeProgress reports progress of the running command.
	EventTypeProgress EventType = "progress"
)

// Status states reported by [EventTypeStatus] events.
const (
	StateStarting = "starting"
	StateSuccess  = "success"
	StateError    = "error"
	StateExit     = "exit"
)

// Event is a parsed line from the engine output pipe.
type Event struct {
	// Raw is the unparsed line.
	Raw string

	// Type is the message kind.
	Type EventType

	// Text is the log message for log events, or the command text for
	// status events.
	Text string

	// State is starting, success, error or exit for status events.
	State string

	// Progress is the completion percentage for progress events, or -1 if
	// the value could not be read.
	Progress float64
}

// IsSuccess reports whether the event marks successful command completion.
func (e Event) IsSuccess() bool {
	return e.Type == EventTypeStatus && e.State == StateSuccess
}

// IsFailure reports whether the event marks a failed command.
func (e Event) IsFailure() bool {
	return e.Type == EventTypeStatus && e.State == StateError
}

// IsExit reports whether the engine announced it is shutting down.
func (e Event) IsExit() bool {
	return e.Type == EventTypeStatus && e.State == StateExit
}

// EventHandler receives every event read while a session is open.
type EventHandler func(Event)

// Engine is the interface to the external engine.
type Engine interface {
	// Version returns the version reported by the engine binary.
	Version(ctx context.Context) (*semver.Version, error)

	// Open starts a session with dir as the engine's working directory.
	// The handler may be nil.
	Open(ctx context.Context, dir string, handler EventHandler) (Session, error)
}

// Session is one running engine process accepting commands in order.
type Session interface {
	// Run forwards a single command line and blocks until the engine
	// reports success or failure. A failure is returned as *[CommandFailure].
	Run(ctx context.Context, line string) error

	// Close asks the engine to exit and releases the session resources.
	Close() error
}

// Errors returned by sessions.
var (
	// ErrEngineExited indicates the engine stopped before reporting the
	// outcome of a command.
	ErrEngineExited = errors.New("engine exited unexpectedly")

	// ErrNotReady indicates the engine did not announce readiness in time.
	ErrNotReady = errors.New("engine did not become ready")
)

// CommandFailure is returned by [Session.Run] when the engine reports an
// error status for a command.
type CommandFailure struct {
	// Command is the forwarded command line.
	Command string

	// Message is the last log output the engine produced before failing.
	Message string
}

func (e *CommandFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine rejected %q", e.Command)
	}
	return fmt.Sprintf("engine rejected %q: %s", e.Command, e.Message)
}
