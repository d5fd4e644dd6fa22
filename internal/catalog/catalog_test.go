package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirilflow/internal/stage"
)

func TestDefault_AllWorkflowsParse(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"master-dark", "master-flat", "calibrated-stack", "no-flats", "drizzle", "seqstat"}, c.Names())

	for _, name := range c.Names() {
		t.Run(name, func(t *testing.T) {
			s, err := c.Script(name)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name)
			assert.NotNil(t, s.Requires, "built-ins declare a minimum engine version")
			assert.NotEmpty(t, s.Commands)

			a := stage.Analyze(s)
			assert.Empty(t, a.Errors(), "built-ins must be correctly ordered")
		})
	}
}

func TestDefault_NoFlatsWritesResultNoFlat(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	s, err := c.Script("no-flats")
	require.NoError(t, err)

	a := stage.Analyze(s)

	assert.Contains(t, a.Artifacts, "result_no_flat")
	for _, cmd := range s.Commands {
		_, hasFlat := cmd.Flag("flat")
		assert.False(t, hasFlat, "no-flats must not reference a flat")
	}
}

func TestDefault_DrizzleUsesFlat(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	s, err := c.Script("drizzle")
	require.NoError(t, err)

	var calibrate, register bool
	for _, cmd := range s.Commands {
		switch cmd.Verb {
		case "calibrate":
			flat, ok := cmd.Flag("flat")
			assert.True(t, ok)
			assert.Equal(t, "../masters/flat_stacked", flat)
			calibrate = true
		case "register":
			assert.True(t, cmd.HasFlag("drizzle"))
			register = true
		}
	}
	assert.True(t, calibrate)
	assert.True(t, register)
}

func TestDefault_MasterFlatKeepsOffsetExpression(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	s, err := c.Script("master-flat")
	require.NoError(t, err)

	assert.Contains(t, s.String(), `-bias="=10*$OFFSET"`)
}

func TestCatalog_GetAndSource(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	w, ok := c.Get("master-dark")
	require.True(t, ok)
	assert.Equal(t, []string{"darks"}, w.Inputs)
	assert.Equal(t, []string{"process", "masters"}, w.WorkDirs)

	src, err := c.Source("master-dark")
	require.NoError(t, err)
	assert.Contains(t, src, "stack dark rej 3 3 -nonorm -out=../masters/dark_stacked")

	_, ok = c.Get("nope")
	assert.False(t, ok)
	_, err = c.Source("nope")
	assert.True(t, errors.Is(err, ErrUnknownWorkflow))
	assert.Contains(t, err.Error(), "master-dark")
}

func TestCatalog_Resolve(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	s, w, err := c.Resolve("seqstat")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "seqstat", s.Name)

	path := filepath.Join(t.TempDir(), "custom.ssf")
	require.NoError(t, os.WriteFile(path, []byte("requires 1.2.0\nload result\n"), 0644))
	s, w, err = c.Resolve(path)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Equal(t, "custom.ssf", s.Name)

	_, _, err = c.Resolve("does-not-exist")
	assert.True(t, errors.Is(err, ErrUnknownWorkflow))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "workflows: []\n", "no workflows"},
		{"missing name", "workflows:\n  - file: a.ssf\n", "name is required"},
		{"missing file", "workflows:\n  - name: a\n", "file is required"},
		{"duplicate", "workflows:\n  - name: a\n    file: a.ssf\n  - name: a\n    file: b.ssf\n", "duplicate"},
		{"invalid yaml", "workflows: [", "failed to parse catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkflow_InputsAndWorkDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "darks"), 0755))
	w := &Workflow{Inputs: []string{"darks", "lights"}, WorkDirs: []string{"process", "masters"}}

	assert.Equal(t, []string{"lights"}, w.MissingInputs(dir))

	require.NoError(t, w.PrepareWorkDirs(dir))
	assert.DirExists(t, filepath.Join(dir, "process"))
	assert.DirExists(t, filepath.Join(dir, "masters"))
}

func TestMultisession(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"session2", "session1", "calibration", "process"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "session3"), nil, 0644))

	s, wf, err := Multisession(root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"session1/lights", "session1/masters", "session2/lights", "session2/masters"}, wf.Inputs)
	assert.Equal(t, []string{"process", "session1/process", "session2/process"}, wf.WorkDirs)
	assert.Equal(t, []string{"process"}, MultisessionWorkflow.WorkDirs)

	text := s.String()
	assert.True(t, strings.HasPrefix(text, "requires 1.3.0\n"))
	assert.Contains(t, text, "cd session1/lights\n")
	assert.Contains(t, text, "cd session2/lights\n")
	assert.NotContains(t, text, "session3")
	assert.NotContains(t, text, "calibration/")
	assert.Contains(t, text, "merge ../session1/process/pp_light ../session2/process/pp_light pp_merge\n")
	assert.Contains(t, text, "register pp_merge -drizzle -scale=1.0 -pixfrac=1.0 -kernel=square\n")
	assert.Contains(t, text, "stack r_pp_merge rej 3 3")
	assert.True(t, strings.HasSuffix(text, "load result\nplatesolve\nsave result\n"))
	assert.Less(t, strings.Index(text, "session1"), strings.Index(text, "session2"))

	a := stage.Analyze(s)
	assert.Empty(t, a.Findings)
	assert.Contains(t, a.Artifacts, "result")
}

func TestMultisession_SingleSession(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "night-a"), 0755))

	s, wf, err := Multisession(root, "night")
	require.NoError(t, err)
	assert.Equal(t, []string{"night-a/process"}, wf.WorkDirs)

	text := s.String()
	assert.NotContains(t, text, "merge")
	assert.NotContains(t, text, "../night-a/process/pp_light")
	assert.Contains(t, text, "calibrate light -dark=../masters/dark_stacked -flat=../masters/flat_stacked -cc=dark -cfa -equalize_cfa\ncd ../..\n"+
		"cd night-a/process\n"+
		"register pp_light -drizzle -scale=1.0 -pixfrac=1.0 -kernel=square\n"+
		"stack r_pp_light rej 3 3 -norm=addscale -output_norm -rgb_equal -32b -out=../../result\n"+
		"cd ../..\n"+
		"load result\n")
	a := stage.Analyze(s)
	assert.Empty(t, a.Findings)
	assert.Contains(t, a.Artifacts, "result")
}

func TestMultisession_NoSessions(t *testing.T) {
	_, _, err := Multisession(t.TempDir(), "session")

	assert.True(t, errors.Is(err, ErrNoSessions))

	_, _, err = Multisession(filepath.Join(t.TempDir(), "missing"), "session")
	assert.Error(t, err)
}
