package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
)

// closeTimeout bounds how long Close waits for the engine to exit before
// killing it.
var closeTimeout = 10 * time.Second

const (
	defaultStartTimeout = 30 * time.Second
	pipePollInterval    = 50 * time.Millisecond

	// failureContextLines is how many trailing log lines are kept to explain
	// a failed command.
	failureContextLines = 3
)

// versionPattern matches the first version number in the engine banner,
// e.g. "siril-cli 1.2.6" or "siril 1.4.0-beta2".
var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.]+)?`)

// ParseVersion extracts the engine version from --version output.
func ParseVersion(output string) (*semver.Version, error) {
	match := versionPattern.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("no version found in engine output %q", strings.TrimSpace(output))
	}
	v, err := semver.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("invalid engine version %q: %w", match, err)
	}
	return v, nil
}

// SirilEngine implements [Engine] by running the siril-cli binary in
// headless pipe mode.
//
// Create instances with [NewSirilEngine]. Fields may be adjusted before the
// first call to Open.
type SirilEngine struct {
	// BinaryPath is the engine executable. Default: "siril-cli".
	BinaryPath string

	// StartTimeout bounds how long Open waits for the pipes and the ready
	// message.
	StartTimeout time.Duration

	// PipeDir holds the named pipes. When empty, each session creates and
	// removes its own temporary directory.
	PipeDir string

	// Stderr receives the engine's standard error. Nil discards it.
	Stderr io.Writer

	parser Parser
	log    *slog.Logger
}

// NewSirilEngine creates a [SirilEngine] for the given binary.
func NewSirilEngine(binaryPath string, logger *slog.Logger) *SirilEngine {
	if binaryPath == "" {
		binaryPath = "siril-cli"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SirilEngine{
		BinaryPath:   binaryPath,
		StartTimeout: defaultStartTimeout,
		parser:       NewParser(),
		log:          logger,
	}
}

// Version runs "<binary> --version" and parses the result.
func (e *SirilEngine) Version(ctx context.Context) (*semver.Version, error) {
	out, err := exec.CommandContext(ctx, e.BinaryPath, "--version").CombinedOutput()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("failed to query engine version: %w", err)
	}
	v, perr := ParseVersion(string(out))
	if perr != nil {
		return nil, perr
	}
	e.log.Debug("engine version detected", "binary", e.BinaryPath, "version", v.String())
	return v, nil
}

// Open starts siril-cli in pipe mode with dir as its working directory and
// waits until it reports ready.
func (e *SirilEngine) Open(ctx context.Context, dir string, handler EventHandler) (Session, error) {
	if handler == nil {
		handler = func(Event) {}
	}
	timeout := e.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}

	pipeDir, ownsPipeDir := e.PipeDir, false
	if pipeDir == "" {
		tmp, err := os.MkdirTemp("", "sirilflow-pipes-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create pipe directory: %w", err)
		}
		pipeDir, ownsPipeDir = tmp, true
	}
	inPath := filepath.Join(pipeDir, "siril_command.in")
	outPath := filepath.Join(pipeDir, "siril_command.out")

	cmd := exec.CommandContext(ctx, e.BinaryPath, "-p", "-r", inPath, "-w", outPath, "-d", dir)
	cmd.Dir = dir
	cmd.Stderr = e.Stderr

	if err := cmd.Start(); err != nil {
		if ownsPipeDir {
			os.RemoveAll(pipeDir)
		}
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	e.log.Debug("engine started", "pid", cmd.Process.Pid, "dir", dir, "pipes", pipeDir)

	s := &sirilSession{
		cmd:         cmd,
		handler:     handler,
		exited:      make(chan struct{}),
		pipeDir:     pipeDir,
		ownsPipeDir: ownsPipeDir,
		log:         e.log,
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	if err := s.connect(inPath, outPath, timeout); err != nil {
		s.kill()
		return nil, err
	}

	s.events = e.parser.Parse(s.out)
	if err := s.awaitReady(ctx, timeout); err != nil {
		s.kill()
		return nil, err
	}

	return s, nil
}

type sirilSession struct {
	cmd         *exec.Cmd
	in          *os.File
	out         *os.File
	events      <-chan Event
	handler     EventHandler
	exited      chan struct{}
	waitErr     error
	pipeDir     string
	ownsPipeDir bool
	log         *slog.Logger
	closeOnce   sync.Once
	closeErr    error
}

// connect waits for the engine to create both pipes and opens them. The
// pipes are opened concurrently because opening a FIFO blocks until the
// other end is opened too, and the engine may open them in either order.
func (s *sirilSession) connect(inPath, outPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !(exists(inPath) && exists(outPath)) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: pipes not created within %s", ErrNotReady, timeout)
		}
		select {
		case <-s.exited:
			return fmt.Errorf("%w: %v", ErrEngineExited, s.waitErr)
		case <-time.After(pipePollInterval):
		}
	}

	inCh := make(chan opened, 1)
	outCh := make(chan opened, 1)
	go func() {
		f, err := os.OpenFile(inPath, os.O_WRONLY, 0)
		inCh <- opened{f, err}
	}()
	go func() {
		f, err := os.OpenFile(outPath, os.O_RDONLY, 0)
		outCh <- opened{f, err}
	}()

	var err error
	for err == nil && (s.in == nil || s.out == nil) {
		select {
		case r := <-inCh:
			inCh = nil
			if r.err != nil {
				err = fmt.Errorf("failed to open engine input pipe: %w", r.err)
			}
			s.in = r.f
		case r := <-outCh:
			outCh = nil
			if r.err != nil {
				err = fmt.Errorf("failed to open engine output pipe: %w", r.err)
			}
			s.out = r.f
		case <-s.exited:
			err = fmt.Errorf("%w: %v", ErrEngineExited, s.waitErr)
		case <-time.After(time.Until(deadline)):
			err = fmt.Errorf("%w: pipes not opened within %s", ErrNotReady, timeout)
		}
	}
	if err != nil {
		if inCh != nil {
			release(inPath, os.O_RDONLY, inCh)
		}
		if outCh != nil {
			release(outPath, os.O_WRONLY, outCh)
		}
	}
	return err
}

type opened struct {
	f   *os.File
	err error
}

// release unblocks a pending FIFO open by opening the other end without
// blocking. Both ends are closed once the pending open returns. The other
// end is opened before returning, so the pipe directory may be removed
// right after.
func release(path string, flag int, pending <-chan opened) {
	other, err := os.OpenFile(path, flag|syscall.O_NONBLOCK, 0)
	go func() {
		if r := <-pending; r.f != nil {
			r.f.Close()
		}
		if err == nil {
			other.Close()
		}
	}()
}

func (s *sirilSession) awaitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w within %s", ErrNotReady, timeout)
		case ev, ok := <-s.events:
			if !ok {
				return fmt.Errorf("%w before ready", ErrEngineExited)
			}
			s.handler(ev)
			if ev.Type == EventTypeReady {
				return nil
			}
		}
	}
}

// Run writes one command and waits for its status.
func (s *sirilSession) Run(ctx context.Context, line string) error {
	s.log.Debug("forwarding command", "command", line)
	if _, err := io.WriteString(s.in, line+"\n"); err != nil {
		return fmt.Errorf("failed to send command to engine: %w", err)
	}

	var recent []string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.events:
			if !ok {
				return fmt.Errorf("%w while running %q", ErrEngineExited, line)
			}
			s.handler(ev)

			switch {
			case ev.Type == EventTypeLog:
				recent = append(recent, ev.Text)
				if len(recent) > failureContextLines {
					recent = recent[1:]
				}
			case ev.IsSuccess():
				return nil
			case ev.IsFailure():
				return &CommandFailure{Command: line, Message: strings.Join(recent, "; ")}
			case ev.IsExit():
				return fmt.Errorf("%w while running %q", ErrEngineExited, line)
			}
		}
	}
}

// Close sends "exit", then waits for the process. A process that does not
// exit in time is killed.
func (s *sirilSession) Close() error {
	s.closeOnce.Do(func() {
		_, _ = io.WriteString(s.in, "exit\n")
		s.in.Close()

		select {
		case <-s.exited:
		case <-time.After(closeTimeout):
			s.log.Warn("engine did not exit, killing", "pid", s.cmd.Process.Pid)
			s.cmd.Process.Kill()
			<-s.exited
		}
		s.out.Close()
		s.drain()
		s.cleanup()
		if s.waitErr != nil {
			s.closeErr = fmt.Errorf("engine exited with error: %w", s.waitErr)
		}
	})
	return s.closeErr
}

func (s *sirilSession) kill() {
	s.closeOnce.Do(func() {
		s.cmd.Process.Kill()
		<-s.exited
		if s.in != nil {
			s.in.Close()
		}
		if s.out != nil {
			s.out.Close()
		}
		s.drain()
		s.cleanup()
	})
}

// drain unblocks the parser goroutine if it is mid-send.
func (s *sirilSession) drain() {
	if s.events == nil {
		return
	}
	go func() {
		for range s.events {
		}
	}()
}

func (s *sirilSession) cleanup() {
	if s.ownsPipeDir {
		os.RemoveAll(s.pipeDir)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
