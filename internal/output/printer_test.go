package output

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sirilflow/internal/stage"
	"sirilflow/internal/status"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short", "load result", 20, "load result"},
		{"exact", "abcdef", 6, "abcdef"},
		{"long", "calibrate light -dark=x", 10, "calibra..."},
		{"disabled", "calibrate light", 0, "calibrate light"},
		{"tiny", "calibrate", 2, "ca"},
		{"multibyte", "✓✓✓✓✓✓", 5, "✓✓..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestPrinter_CommandLifecycle(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.RunHeader("no-flats", "/data/m42", 12, "1.2.0")
	p.CommandStart(1, 12, "cd /data/m42/darks")
	p.CommandComplete(status.Command{Index: 1, Status: status.StatusSucceeded, Duration: 1500 * time.Millisecond})
	p.CommandStart(2, 12, "calibrate light -flat=../masters/flat_stacked")
	p.CommandComplete(status.Command{Index: 2, Status: status.StatusFailed, Message: "missing input: -flat=../masters/flat_stacked"})
	p.EngineLog("Reading sequence failed")

	out := buf.String()
	assert.Contains(t, out, "Workflow: no-flats")
	assert.Contains(t, out, "Requires: siril 1.2.0")
	assert.Contains(t, out, "[1/12]")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "-flat=../masters/flat_stacked")
	assert.Contains(t, out, "Reading sequence failed")
}

func TestPrinter_RunSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	run := status.NewRun("id", "drizzle", "/data", []string{"cd /data/lights", "calibrate light", "register pp_light"}, nil)
	run.Status = status.StatusFailed
	run.EngineVersion = "1.2.6"
	run.Started = time.Now()
	run.Finished = run.Started.Add(3 * time.Second)
	run.Commands[0].Status = status.StatusSucceeded
	run.Commands[1].Status = status.StatusFailed
	run.Commands[1].Message = "no flat found"
	run.SkipPending()

	p.RunSummary(run)

	out := buf.String()
	assert.Contains(t, out, "WORKFLOW FAILED")
	assert.Contains(t, out, "Succeeded: 1 | Failed: 1 | Skipped: 1")
	assert.Contains(t, out, "Failed at: [2] calibrate light")
	assert.Contains(t, out, "Reason: no flat found")
	assert.Contains(t, out, "Engine: siril 1.2.6")
}

func TestPrinter_RunSummary_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	run := status.NewRun("id", "seqstat", "/data", nil, nil)
	run.Status = status.StatusSucceeded

	p.RunSummary(run)

	assert.Contains(t, buf.String(), "WORKFLOW COMPLETE")
}

func TestPrinter_Findings(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.Findings(nil)
	p.Findings([]stage.Finding{
		{Line: 3, Severity: stage.SeverityError, Message: "stack uses r_pp_light too early", Err: errors.New("x")},
		{Line: 5, Severity: stage.SeverityWarning, Message: "stack uses light, which this script does not produce"},
	})

	out := buf.String()
	assert.Contains(t, out, "no ordering problems found")
	assert.Contains(t, out, "line 3: stack uses r_pp_light too early")
	assert.Contains(t, out, "line 5:")
}

func TestPrinter_QueueSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.QueueHeader([]string{"master-dark", "master-flat", "calibrated-stack"})
	p.QueueItemStart(1, 3, "master-dark")
	p.QueueSummary([]QueueResult{
		{Name: "master-dark", Success: true, Duration: 2 * time.Second},
		{Name: "master-flat", Success: false, FailedAt: "stack pp_flat"},
	}, []string{"master-dark", "master-flat", "calibrated-stack"}, 5*time.Second)

	out := buf.String()
	assert.Contains(t, out, "Queue: 3 workflows")
	assert.Contains(t, out, "QUEUE [1/3]: master-dark")
	assert.Contains(t, out, "QUEUE STOPPED")
	assert.Contains(t, out, "Completed: 1 | Failed: 1 | Remaining: 1")
	assert.Contains(t, out, "calibrated-stack")
	assert.Contains(t, out, "(skipped)")
	assert.Contains(t, out, "at stack pp_flat")
}

func TestPrinter_TruncateLength(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)
	p.SetTruncateLength(12)

	p.CommandStart(1, 1, "calibrate light -dark=../masters/dark_stacked")

	assert.Contains(t, buf.String(), "calibrate...")
	assert.NotContains(t, buf.String(), "dark_stacked")
}
