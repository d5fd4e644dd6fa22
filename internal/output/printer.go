// Package output renders workflow progress and summaries in the terminal.
//
// The [Printer] interface decouples the runner and CLI from presentation.
// [DefaultPrinter] draws lipgloss-styled headers, per-command status lines
// and summary boxes. Tests use [NewPrinterWithWriter] to capture output.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sirilflow/internal/stage"
	"sirilflow/internal/status"
)

// Printer is the terminal presentation used by the runner and CLI commands.
type Printer interface {
	// RunHeader announces a workflow before its first command.
	RunHeader(name, dir string, commands int, requires string)

	// CommandStart is called before a command is forwarded.
	CommandStart(index, total int, command string)

	// CommandComplete reports the outcome of a command.
	CommandComplete(cmd status.Command)

	// EngineLog shows a log line from the engine.
	EngineLog(text string)

	// RunSummary closes a workflow with its outcome and timings.
	RunSummary(run *status.Run)

	// Findings lists stage analysis findings.
	Findings(findings []stage.Finding)

	// QueueHeader announces a queue of workflows.
	QueueHeader(names []string)

	// QueueItemStart is called before each workflow of a queue.
	QueueItemStart(index, total int, name string)

	// QueueSummary closes a queue. Workflows after the last result were
	// not started.
	QueueSummary(results []QueueResult, all []string, total time.Duration)

	// Text prints a plain line.
	Text(s string)
}

// QueueResult is the outcome of one workflow in a queue.
type QueueResult struct {
	Name     string
	Success  bool
	Duration time.Duration
	FailedAt string
}

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 2)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

// DefaultPrinter implements [Printer] with lipgloss styling.
type DefaultPrinter struct {
	out      io.Writer
	truncate int
}

// NewPrinter creates a [DefaultPrinter] writing to stdout.
func NewPrinter() *DefaultPrinter {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a [DefaultPrinter] writing to w.
func NewPrinterWithWriter(w io.Writer) *DefaultPrinter {
	return &DefaultPrinter{out: w, truncate: 100}
}

// SetTruncateLength limits displayed command and log lines. Zero or less
// disables truncation.
func (p *DefaultPrinter) SetTruncateLength(n int) {
	p.truncate = n
}

func (p *DefaultPrinter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *DefaultPrinter) RunHeader(name, dir string, commands int, requires string) {
	lines := []string{
		fmt.Sprintf("Workflow: %s", name),
		fmt.Sprintf("Directory: %s", dir),
		fmt.Sprintf("Commands: %d", commands),
	}
	if requires != "" {
		lines = append(lines, fmt.Sprintf("Requires: siril %s", requires))
	}
	p.printf("\n%s\n\n", headerStyle.Render(strings.Join(lines, "\n")))
}

func (p *DefaultPrinter) CommandStart(index, total int, command string) {
	p.printf("%s %s\n", stepStyle.Render(fmt.Sprintf("[%d/%d]", index, total)), Truncate(command, p.truncate))
}

func (p *DefaultPrinter) CommandComplete(cmd status.Command) {
	switch cmd.Status {
	case status.StatusSucceeded:
		p.printf("  %s %s\n", successStyle.Render("✓"), mutedStyle.Render(cmd.Duration.Round(time.Millisecond).String()))
	case status.StatusFailed:
		msg := cmd.Message
		if msg == "" {
			msg = "failed"
		}
		p.printf("  %s %s\n", failStyle.Render("✗"), Truncate(msg, p.truncate))
	case status.StatusPending:
		p.printf("  %s\n", mutedStyle.Render("(dry run)"))
	}
}

func (p *DefaultPrinter) EngineLog(text string) {
	p.printf("    %s\n", mutedStyle.Render(Truncate(text, p.truncate)))
}

func (p *DefaultPrinter) RunSummary(run *status.Run) {
	var lines []string
	switch run.Status {
	case status.StatusSucceeded:
		if run.DryRun {
			lines = append(lines, successStyle.Render("✓ DRY RUN COMPLETE"))
		} else {
			lines = append(lines, successStyle.Render("✓ WORKFLOW COMPLETE"))
		}
	default:
		lines = append(lines, failStyle.Render("✗ WORKFLOW FAILED"))
	}
	lines = append(lines, fmt.Sprintf("Workflow: %s", run.Script))
	if run.EngineVersion != "" {
		lines = append(lines, fmt.Sprintf("Engine: siril %s", run.EngineVersion))
	}
	lines = append(lines, fmt.Sprintf("Succeeded: %d | Failed: %d | Skipped: %d",
		run.Count(status.StatusSucceeded), run.Count(status.StatusFailed), run.Count(status.StatusSkipped)))

	if failed := run.Failed(); failed != nil {
		lines = append(lines, fmt.Sprintf("Failed at: [%d] %s", failed.Index, Truncate(failed.Text, p.truncate)))
		if failed.Message != "" {
			lines = append(lines, fmt.Sprintf("Reason: %s", Truncate(failed.Message, p.truncate)))
		}
	} else if run.Error != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", Truncate(run.Error, p.truncate)))
	}
	lines = append(lines, fmt.Sprintf("Total: %s", run.Duration().Round(time.Millisecond)))

	p.printf("\n%s\n", summaryStyle.Render(strings.Join(lines, "\n")))
}

func (p *DefaultPrinter) Findings(findings []stage.Finding) {
	if len(findings) == 0 {
		p.printf("%s no ordering problems found\n", successStyle.Render("✓"))
		return
	}
	for _, f := range findings {
		mark := warnStyle.Render("!")
		if f.Severity == stage.SeverityError {
			mark = failStyle.Render("✗")
		}
		p.printf("%s line %d: %s\n", mark, f.Line, f.Message)
	}
}

func (p *DefaultPrinter) QueueHeader(names []string) {
	body := fmt.Sprintf("Queue: %d workflows\nWorkflows: %s", len(names), Truncate(strings.Join(names, ", "), 60))
	p.printf("\n%s\n\n", headerStyle.Render(body))
}

func (p *DefaultPrinter) QueueItemStart(index, total int, name string) {
	p.printf("%s\n", stepStyle.Render(fmt.Sprintf("QUEUE [%d/%d]: %s", index, total, name)))
}

func (p *DefaultPrinter) QueueSummary(results []QueueResult, all []string, total time.Duration) {
	completed, failed := 0, 0
	for _, r := range results {
		if r.Success {
			completed++
		} else {
			failed++
		}
	}
	remaining := len(all) - len(results)

	var lines []string
	if failed == 0 && remaining == 0 {
		lines = append(lines, successStyle.Render("✓ QUEUE COMPLETE"))
	} else {
		lines = append(lines, failStyle.Render("✗ QUEUE STOPPED"))
	}
	lines = append(lines, fmt.Sprintf("Completed: %d | Failed: %d | Remaining: %d", completed, failed, remaining))
	for _, r := range results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %-24s %s", mark, r.Name, r.Duration.Round(time.Second))
		if r.FailedAt != "" {
			line += " at " + Truncate(r.FailedAt, 40)
		}
		lines = append(lines, line)
	}
	for i := len(results); i < len(all); i++ {
		lines = append(lines, fmt.Sprintf("○ %-24s (skipped)", all[i]))
	}
	lines = append(lines, fmt.Sprintf("Total: %s", total.Round(time.Second)))

	p.printf("\n%s\n", summaryStyle.Render(strings.Join(lines, "\n")))
}

func (p *DefaultPrinter) Text(s string) {
	p.printf("%s\n", s)
}

// Truncate shortens s to maxLen characters, ending in "...". A maxLen of
// zero or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
