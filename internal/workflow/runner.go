// Package workflow runs Siril workflow scripts against the engine.
//
// A run checks the script's command order, checks the engine version, opens
// one engine session and forwards each command in file order. The first
// failure stops the run; later commands are reported as skipped and
// intermediate files stay on disk.
//
// Key types:
//   - [Runner] executes scripts and reports progress to an [output.Printer]
//   - [Context] holds the working directory and interpolation variables
//   - [CommandError] identifies the command that stopped a run
//
// Every failure wraps one of [ErrVersionMismatch], [ErrCommandFailed],
// [ErrMissingInput] or [ErrOrderViolation].
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sirilflow/internal/config"
	"sirilflow/internal/engine"
	"sirilflow/internal/output"
	"sirilflow/internal/script"
	"sirilflow/internal/stage"
	"sirilflow/internal/status"
)

// Recorder persists run state. Record is called when a run starts, after
// every command, and when the run ends, each time with the complete run.
type Recorder interface {
	Record(run *status.Run) error
}

// ProgressCallback is invoked before each command is forwarded.
//
// The callback receives the 1-based command index, the command count, and
// the command text after interpolation.
type ProgressCallback func(index, total int, command string)

// masterFlags name the calibration masters checked before forwarding.
var masterFlags = []string{"bias", "dark", "flat"}

// Runner executes workflow scripts.
//
// Use [NewRunner] to create an instance and [Runner.Run] to execute a
// script. A Runner runs one script at a time.
type Runner struct {
	engine    engine.Engine
	printer   output.Printer
	config    *config.Config
	log       *slog.Logger
	recorders []Recorder
	progress  ProgressCallback
	dryRun    bool
	newID     func() string
	now       func() time.Time
}

// NewRunner creates a new Runner.
func NewRunner(e engine.Engine, printer output.Printer, cfg *config.Config) *Runner {
	return &Runner{
		engine:  e,
		printer: printer,
		config:  cfg,
		log:     slog.Default(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// SetLogger sets the diagnostic logger.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.log = logger
	}
}

// AddRecorder registers a [Recorder]. Recorder errors are logged and do not
// stop the run.
func (r *Runner) AddRecorder(rec Recorder) {
	r.recorders = append(r.recorders, rec)
}

// SetProgressCallback configures an optional progress callback.
func (r *Runner) SetProgressCallback(cb ProgressCallback) {
	r.progress = cb
}

// SetDryRun makes Run interpolate and print the commands without starting
// the engine. Commands stay pending and no files are checked.
func (r *Runner) SetDryRun(dryRun bool) {
	r.dryRun = dryRun
}

// Run executes s in c and returns the completed run record.
//
// The returned error is nil on success. On failure it is either a
// *[CommandError] for a failing command or a plain wrapped sentinel when no
// command was involved (version mismatch, engine start failure).
func (r *Runner) Run(ctx context.Context, s *script.Script, c Context) (*status.Run, error) {
	texts := make([]string, len(s.Commands))
	lines := make([]int, len(s.Commands))
	for i, cmd := range s.Commands {
		texts[i] = cmd.String()
		lines[i] = cmd.Line
	}

	run := status.NewRun(r.newID(), s.Name, c.Dir, texts, lines)
	run.DryRun = r.dryRun
	if s.Requires != nil {
		run.Requires = s.Requires.Original()
	}
	run.Started = r.now()
	run.Status = status.StatusRunning

	r.printer.RunHeader(s.Name, c.Dir, len(s.Commands), run.Requires)
	r.record(run)

	err := r.execute(ctx, s, c, run)
	return r.finish(run, err)
}

func (r *Runner) execute(ctx context.Context, s *script.Script, c Context, run *status.Run) error {
	if err := r.checkOrder(s, run); err != nil {
		return err
	}

	if r.dryRun {
		return r.forward(ctx, s, c, run, nil)
	}

	if err := r.checkVersion(ctx, s, run); err != nil {
		return err
	}

	session, err := r.engine.Open(ctx, c.Dir, r.handleEvent)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	err = r.forward(ctx, s, c, run, session)
	if cerr := session.Close(); cerr != nil {
		r.log.Warn("engine session did not close cleanly", "error", cerr)
	}
	return err
}

// checkOrder rejects scripts that use a sequence before producing it.
func (r *Runner) checkOrder(s *script.Script, run *status.Run) error {
	analysis := stage.Analyze(s)
	for _, w := range analysis.Warnings() {
		r.log.Debug("sequence not produced by script", "line", w.Line, "sequence", w.Sequence)
	}

	errs := analysis.Errors()
	if len(errs) == 0 {
		return nil
	}
	f := errs[0]
	res := &run.Commands[f.Index]
	res.Status = status.StatusFailed
	res.Message = f.Message
	return &CommandError{
		Index:   f.Index + 1,
		Line:    f.Line,
		Command: res.Text,
		Message: f.Message,
		Err:     f.Err,
	}
}

func (r *Runner) checkVersion(ctx context.Context, s *script.Script, run *status.Run) error {
	v, err := r.engine.Version(ctx)
	if err != nil {
		if s.Requires != nil {
			return fmt.Errorf("failed to detect engine version: %w", err)
		}
		r.log.Warn("could not detect engine version", "error", err)
		return nil
	}
	run.EngineVersion = v.String()

	if s.Requires != nil && v.LessThan(s.Requires) {
		return fmt.Errorf("%w: %s requires siril %s, found %s", ErrVersionMismatch, s.Name, s.Requires.Original(), v)
	}
	return nil
}

// forward runs every command in order. A nil session means dry run.
func (r *Runner) forward(ctx context.Context, s *script.Script, c Context, run *status.Run, session engine.Session) error {
	total := len(s.Commands)
	dir := c.Dir

	for i, raw := range s.Commands {
		res := &run.Commands[i]
		cmd := c.InterpolateCommand(raw)

		var nextDir string
		if cmd.Verb == "cd" {
			target, err := r.resolveDir(dir, cmd, session == nil)
			if err != nil {
				res.Text = cmd.String()
				return r.fail(res, raw, err, "")
			}
			nextDir = target
			cmd = cmd.WithArgs([]string{target})
		}
		res.Text = cmd.String()

		if r.progress != nil {
			r.progress(i+1, total, res.Text)
		}
		r.printer.CommandStart(i+1, total, res.Text)

		if session == nil {
			if nextDir != "" {
				dir = nextDir
			}
			r.printer.CommandComplete(*res)
			continue
		}

		if err := r.checkMasters(dir, cmd); err != nil {
			return r.fail(res, raw, err, "")
		}

		res.Status = status.StatusRunning
		res.Started = r.now()
		r.record(run)

		err := session.Run(ctx, res.Text)
		res.Duration = r.now().Sub(res.Started)
		if err != nil {
			msg := err.Error()
			var failure *engine.CommandFailure
			if errors.As(err, &failure) {
				msg = failure.Message
			}
			return r.fail(res, raw, fmt.Errorf("%w: %w", ErrCommandFailed, err), msg)
		}

		res.Status = status.StatusSucceeded
		if nextDir != "" {
			dir = nextDir
		}
		r.printer.CommandComplete(*res)
		r.record(run)
	}
	return nil
}

// resolveDir returns the absolute target of a cd command. Unless lexical is
// set, the directory must exist.
func (r *Runner) resolveDir(dir string, cmd script.Command, lexical bool) (string, error) {
	arg := cmd.Arg(0)
	if arg == "" {
		return "", fmt.Errorf("%w: cd needs a directory", ErrMissingInput)
	}
	target := Context{Dir: dir}.Resolve(arg)
	if lexical {
		return target, nil
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("%w: directory %s does not exist", ErrMissingInput, target)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrMissingInput, target)
	}
	return target, nil
}

// checkMasters verifies that -bias=, -dark= and -flat= files exist. Values
// starting with '=' are engine expressions and unresolved $NAME references
// are left for the engine.
func (r *Runner) checkMasters(dir string, cmd script.Command) error {
	var missing []string
	for _, name := range masterFlags {
		value, ok := cmd.Flag(name)
		if !ok || value == "" || strings.HasPrefix(value, "=") || strings.Contains(value, "$") {
			continue
		}
		if !r.masterExists(Context{Dir: dir}.Resolve(value)) {
			missing = append(missing, fmt.Sprintf("%s master -%s=%s not found", name, name, value))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, "; "))
}

func (r *Runner) masterExists(path string) bool {
	if fileExists(path) {
		return true
	}
	for _, ext := range r.config.Engine.FITSExtensions {
		if fileExists(path + ext) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}

func (r *Runner) fail(res *status.Command, raw script.Command, err error, msg string) error {
	if msg == "" {
		msg = err.Error()
	}
	res.Status = status.StatusFailed
	res.Message = msg
	r.printer.CommandComplete(*res)
	return &CommandError{
		Index:   res.Index,
		Line:    raw.Line,
		Command: res.Text,
		Message: msg,
		Err:     err,
	}
}

func (r *Runner) finish(run *status.Run, err error) (*status.Run, error) {
	run.Finished = r.now()
	if err != nil {
		run.Status = status.StatusFailed
		run.Error = err.Error()
		run.SkipPending()
		r.log.Info("workflow failed", "script", run.Script, "error", err)
	} else {
		run.Status = status.StatusSucceeded
		r.log.Info("workflow complete", "script", run.Script, "duration", run.Duration())
	}
	r.record(run)
	r.printer.RunSummary(run)
	return run, err
}

func (r *Runner) handleEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventTypeLog:
		r.log.Debug("engine", "log", ev.Text)
		if r.config.Output.ShowEngineLog {
			r.printer.EngineLog(ev.Text)
		}
	case engine.EventTypeProgress:
		r.log.Debug("engine progress", "percent", ev.Progress)
	}
}

func (r *Runner) record(run *status.Run) {
	for _, rec := range r.recorders {
		if err := rec.Record(run); err != nil {
			r.log.Warn("failed to record run", "run", run.ID, "error", err)
		}
	}
}
