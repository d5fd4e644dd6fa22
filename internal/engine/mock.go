package engine

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MockEngine implements [Engine] for testing without spawning a process.
//
// Configure the mock by setting its fields before use:
//
//	mock := &MockEngine{EngineVersion: "1.2.6", FailOn: "register"}
//
// Commands forwarded through any session are recorded in Commands.
type MockEngine struct {
	// EngineVersion is returned by Version. Defaults to "1.2.6".
	EngineVersion string

	// VersionErr is returned by Version when set.
	VersionErr error

	// OpenErr is returned by Open when set.
	OpenErr error

	// FailOn makes Run fail for commands with this verb.
	FailOn string

	// FailMessage is the engine message attached to the failure.
	FailMessage string

	// OnRun, when set, is called with each forwarded command line after it
	// is recorded. A non-nil error becomes the command's result, which lets
	// tests simulate the files the engine writes.
	OnRun func(line string) error

	// Events are delivered to the session handler before each command
	// completes.
	Events []Event

	// Commands records every forwarded command line in order.
	Commands []string

	// OpenedDirs records the working directory of each opened session.
	OpenedDirs []string

	// Closed counts closed sessions.
	Closed int

	// VersionCalls counts calls to Version.
	VersionCalls int
}

// Version returns the configured version.
func (m *MockEngine) Version(ctx context.Context) (*semver.Version, error) {
	m.VersionCalls++
	if m.VersionErr != nil {
		return nil, m.VersionErr
	}
	v := m.EngineVersion
	if v == "" {
		v = "1.2.6"
	}
	return semver.NewVersion(v)
}

// Open returns a recording session.
func (m *MockEngine) Open(ctx context.Context, dir string, handler EventHandler) (Session, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.OpenedDirs = append(m.OpenedDirs, dir)
	if handler == nil {
		handler = func(Event) {}
	}
	handler(Event{Raw: "ready", Type: EventTypeReady})
	return &mockSession{engine: m, handler: handler}, nil
}

type mockSession struct {
	engine  *MockEngine
	handler EventHandler
}

func (s *mockSession) Run(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.engine.Commands = append(s.engine.Commands, line)
	for _, ev := range s.engine.Events {
		s.handler(ev)
	}

	if s.engine.OnRun != nil {
		if err := s.engine.OnRun(line); err != nil {
			return err
		}
	}

	verb, _, _ := strings.Cut(line, " ")
	if s.engine.FailOn != "" && verb == s.engine.FailOn {
		s.handler(Event{Type: EventTypeStatus, State: StateError, Text: verb})
		return &CommandFailure{Command: line, Message: s.engine.FailMessage}
	}
	s.handler(Event{Type: EventTypeStatus, State: StateSuccess, Text: verb})
	return nil
}

func (s *mockSession) Close() error {
	s.engine.Closed++
	return nil
}
