package stage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirilflow/internal/script"
)

const noFlats = `requires 1.2.0
cd darks
convert dark -out=../process
cd ../process
stack dark rej 3 3 -nonorm -out=../masters/dark_stacked
cd ../lights
convert light -out=../process
cd ../process
calibrate light -dark=../masters/dark_stacked -cc=dark -cfa -equalize_cfa -debayer
register pp_light
stack r_pp_light rej 3 3 -norm=addscale -output_norm -rgb_equal -32b -out=../result_no_flat
cd ..
load result_no_flat
save result_no_flat
`

func mustParse(t *testing.T, text string) *script.Script {
	t.Helper()
	s, err := script.ParseString("test.ssf", text)
	require.NoError(t, err)
	return s
}

func TestOf(t *testing.T) {
	tests := []struct {
		verb string
		want Stage
	}{
		{"convert", Conversion},
		{"calibrate", Calibration},
		{"register", Registration},
		{"seqapplyreg", Registration},
		{"merge", Merging},
		{"stack", Stacking},
		{"seqstat", Statistics},
		{"platesolve", Image},
		{"cd", Navigation},
		{"STACK", Stacking},
		{"pm", Other},
	}

	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.verb))
		})
	}
}

func TestAnalyze_NoFlatsWorkflow(t *testing.T) {
	a := Analyze(mustParse(t, noFlats))

	assert.Empty(t, a.Errors())
	assert.Empty(t, a.Warnings())
	assert.NoError(t, a.Err())
	assert.Equal(t, []string{"masters/dark_stacked", "result_no_flat"}, a.Artifacts)

	var paths []string
	for _, p := range a.Produced {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{"process/dark", "process/light", "process/pp_light", "process/r_pp_light"}, paths)
}

func TestAnalyze_StackBeforeRegister(t *testing.T) {
	s := mustParse(t, `cd process
stack r_pp_light rej 3 3 -out=../result
calibrate light -dark=../masters/dark_stacked
register pp_light
`)

	a := Analyze(s)

	errs := a.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, "stack", errs[0].Verb)
	assert.Equal(t, "process/r_pp_light", errs[0].Sequence)
	assert.True(t, errors.Is(a.Err(), ErrOrderViolation))
	assert.Contains(t, a.Err().Error(), "register")

	// light itself is not produced by the script, which is only a warning.
	warnings := a.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "process/light", warnings[0].Sequence)
}

func TestAnalyze_CalibrateBeforeConvert(t *testing.T) {
	s := mustParse(t, `cd process
calibrate light
cd ../lights
convert light -out=../process
`)

	a := Analyze(s)

	require.Len(t, a.Errors(), 1)
	assert.Equal(t, "calibrate", a.Errors()[0].Verb)
}

func TestAnalyze_SameNameInOtherDirectoryIsIndependent(t *testing.T) {
	s := mustParse(t, `cd a
stack light
cd ../b
convert light
`)

	a := Analyze(s)

	assert.Empty(t, a.Errors())
	require.Len(t, a.Warnings(), 1)
	assert.Equal(t, "a/light", a.Warnings()[0].Sequence)
}

func TestAnalyze_Prefixes(t *testing.T) {
	s := mustParse(t, `convert light
calibrate light -prefix=cal_
register cal_light -2pass
seqapplyreg cal_light -prefix=reg_
seqsubsky reg_cal_light 1
stack bkg_reg_cal_light
`)

	a := Analyze(s)

	assert.Empty(t, a.Findings)
	var paths []string
	for _, p := range a.Produced {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{"light", "cal_light", "reg_cal_light", "bkg_reg_cal_light"}, paths)
	assert.Equal(t, []string{"bkg_reg_cal_light_stacked"}, a.Artifacts)
}

func TestAnalyze_MergeAcrossSessions(t *testing.T) {
	s := mustParse(t, `cd session1/lights
convert light -out=../process
cd ../process
calibrate light
cd ../..
cd process
merge ../session1/process/pp_light pp_merge
register pp_merge -drizzle
stack r_pp_merge.seq -out=../result
seqstat r_pp_merge ../stats.csv basic
`)

	a := Analyze(s)

	assert.Empty(t, a.Findings)
	assert.Equal(t, []string{"result", "stats.csv"}, a.Artifacts)
	assert.Equal(t, Merging, a.Stages[6])
}

func TestAnalyze_MergeOutputUsedEarly(t *testing.T) {
	s := mustParse(t, `register pp_merge
merge a b pp_merge
`)

	a := Analyze(s)

	require.Len(t, a.Errors(), 1)
	assert.Equal(t, "pp_merge", a.Errors()[0].Sequence)
}

func TestAnalyze_AbsoluteCd(t *testing.T) {
	s := mustParse(t, `cd /data/night1
convert light
cd /data/night1/
stack light
`)

	a := Analyze(s)

	assert.Empty(t, a.Findings)
	assert.Equal(t, []string{"/data/night1/light_stacked"}, a.Artifacts)
}

func TestAnalyze_ArtifactsAreStable(t *testing.T) {
	first := Analyze(mustParse(t, noFlats))
	second := Analyze(mustParse(t, noFlats))

	assert.Equal(t, first.Artifacts, second.Artifacts)
}
