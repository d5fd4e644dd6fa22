package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *Run {
	run := NewRun("run-1", "no-flats", "/data/m42",
		[]string{"cd /data/m42/darks", "convert dark -out=../process", "stack dark"},
		[]int{2, 3, 4})
	run.Status = StatusFailed
	run.Started = time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	run.Finished = run.Started.Add(90 * time.Second)
	run.Commands[0].Status = StatusSucceeded
	run.Commands[0].Duration = 2 * time.Second
	run.Commands[1].Status = StatusFailed
	run.Commands[1].Message = "no file found"
	run.SkipPending()
	return run
}

func TestNewRun(t *testing.T) {
	run := NewRun("id", "script", "/dir", []string{"a", "b"}, []int{5})

	assert.Equal(t, StatusPending, run.Status)
	require.Len(t, run.Commands, 2)
	assert.Equal(t, 1, run.Commands[0].Index)
	assert.Equal(t, 5, run.Commands[0].Line)
	assert.Equal(t, 2, run.Commands[1].Index)
	assert.Equal(t, 0, run.Commands[1].Line)
	assert.Equal(t, StatusPending, run.Commands[1].Status)
}

func TestRun_Helpers(t *testing.T) {
	run := sampleRun()

	assert.Equal(t, 1, run.Count(StatusSucceeded))
	assert.Equal(t, 1, run.Count(StatusFailed))
	assert.Equal(t, 1, run.Count(StatusSkipped))
	assert.Equal(t, 0, run.Count(StatusPending))
	require.NotNil(t, run.Failed())
	assert.Equal(t, 2, run.Failed().Index)
	assert.Equal(t, 90*time.Second, run.Duration())

	run.Finished = time.Time{}
	assert.Equal(t, time.Duration(0), run.Duration())
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusRunning.IsValid())
	assert.True(t, StatusSkipped.IsValid())
	assert.False(t, Status("done").IsValid())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
}

func TestWriter_RecordThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "last-run.yaml")
	w := NewWriter(path)

	require.NoError(t, w.Record(sampleRun()))

	run, err := NewReader(path).Read()
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "no file found", run.Commands[1].Message)
	assert.Equal(t, 2*time.Second, run.Commands[0].Duration)
	assert.Equal(t, StatusSkipped, run.Commands[2].Status)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestWriter_RecordOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	w := NewWriter(path)

	run := sampleRun()
	run.Status = StatusRunning
	require.NoError(t, w.Record(run))
	run.Status = StatusSucceeded
	require.NoError(t, w.Record(run))

	got, err := NewReader(path).Read()
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
}

func TestWriter_RejectsInvalidStatus(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "report.yaml"))
	run := sampleRun()
	run.Status = "bogus"

	err := w.Record(run)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestReader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewReader(filepath.Join(dir, "missing.yaml")).Read()
	assert.ErrorContains(t, err, "failed to read run report")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("status: [unterminated"), 0644))
	_, err = NewReader(bad).Read()
	assert.ErrorContains(t, err, "failed to read run report")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("id: x\nstatus: succeeded\ncommands:\n  - index: 1\n    command: load x\n    status: weird\n"), 0644))
	_, err = NewReader(invalid).Read()
	assert.ErrorContains(t, err, "invalid status")
}

func TestResolvePath(t *testing.T) {
	t.Setenv("SIRILFLOW_REPORT_PATH", "")

	assert.Equal(t, filepath.Join("/work", DefaultReportPath), ResolvePath("/work", ""))
	assert.Equal(t, filepath.Join("/work", "reports/run.yaml"), ResolvePath("/work", "reports/run.yaml"))
	assert.Equal(t, "/tmp/run.yaml", ResolvePath("/work", "/tmp/run.yaml"))

	t.Setenv("SIRILFLOW_REPORT_PATH", "/env/run.yaml")
	assert.Equal(t, "/env/run.yaml", ResolvePath("/work", "/tmp/run.yaml"))
}
