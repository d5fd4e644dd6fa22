// Package stage classifies script commands into processing stages and checks
// that a script produces every sequence before it uses it.
//
// Siril names the sequences a command writes after its input: calibrating
// "light" writes "pp_light", registering that writes "r_pp_light", and so on.
// [Analyze] follows those names through the script, tracking "cd" lexically,
// so a "stack" placed ahead of the "register" that feeds it is caught before
// the engine is started.
//
// Key types:
//   - [Stage] is the processing stage of a verb
//   - [Analysis] holds the findings and the resolved artifacts of a script
package stage

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"sirilflow/internal/script"
)

// Stage is a processing stage in an image-stacking workflow.
type Stage string

const (
	Conversion   Stage = "conversion"
	Calibration  Stage = "calibration"
	Registration Stage = "registration"
	Background   Stage = "background"
	Merging      Stage = "merging"
	Stacking     Stage = "stacking"
	Statistics   Stage = "statistics"
	Image        Stage = "image"
	Navigation   Stage = "navigation"
	Other        Stage = "other"
)

var verbStages = map[string]Stage{
	"convert":     Conversion,
	"convertraw":  Conversion,
	"link":        Conversion,
	"calibrate":   Calibration,
	"preprocess":  Calibration,
	"register":    Registration,
	"seqapplyreg": Registration,
	"seqsubsky":   Background,
	"merge":       Merging,
	"stack":       Stacking,
	"seqstat":     Statistics,
	"stat":        Statistics,
	"load":        Image,
	"save":        Image,
	"savefits":    Image,
	"savetif":     Image,
	"savejpg":     Image,
	"savepng":     Image,
	"close":       Image,
	"platesolve":  Image,
	"subsky":      Image,
	"autostretch": Image,
	"mirrorx":     Image,
	"rmgreen":     Image,
	"cd":          Navigation,
}

// Of returns the stage of a verb, or [Other] for verbs it does not know.
func Of(verb string) Stage {
	if s, ok := verbStages[strings.ToLower(verb)]; ok {
		return s
	}
	return Other
}

// ErrOrderViolation indicates a command uses a sequence that the script only
// produces further down.
var ErrOrderViolation = errors.New("sequence used before it is produced")

// Severity grades a [Finding].
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem found in a script.
type Finding struct {
	// Index is the 0-based position of the command in the script.
	Index int

	// Line is the source line of the command.
	Line int

	// Verb is the command verb.
	Verb string

	// Sequence is the sequence path the finding is about, relative to the
	// directory the script starts in.
	Sequence string

	Severity Severity
	Message  string

	// Err wraps [ErrOrderViolation] for error findings and is nil for
	// warnings.
	Err error
}

// Sequence is a sequence produced by a script command.
type Sequence struct {
	// Path is the sequence location relative to the starting directory,
	// e.g. "process/pp_light".
	Path string

	// Index is the producing command's position.
	Index int

	// Verb is the producing command's verb.
	Verb string
}

// Analysis is the result of [Analyze].
type Analysis struct {
	Findings []Finding

	// Produced lists sequences in production order.
	Produced []Sequence

	// Artifacts lists the files the script writes, resolved against the
	// starting directory, in first-appearance order.
	Artifacts []string

	// Stages holds the stage of each command.
	Stages []Stage
}

// Errors returns the error findings.
func (a *Analysis) Errors() []Finding {
	return a.filter(SeverityError)
}

// Warnings returns the warning findings.
func (a *Analysis) Warnings() []Finding {
	return a.filter(SeverityWarning)
}

func (a *Analysis) filter(sev Severity) []Finding {
	var out []Finding
	for _, f := range a.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// Err returns the first error finding's error, or nil.
func (a *Analysis) Err() error {
	for _, f := range a.Findings {
		if f.Severity == SeverityError {
			return f.Err
		}
	}
	return nil
}

// flow is what one command reads and writes, relative to the directory it
// runs in.
type flow struct {
	consumes []string
	produces []string
	writes   []string
}

// Analyze walks the script and reports sequences consumed before they are
// produced (errors) and sequences the script never produces (warnings,
// since they may already exist on disk).
func Analyze(s *script.Script) *Analysis {
	a := &Analysis{Stages: make([]Stage, len(s.Commands))}

	type use struct {
		index int
		cmd   script.Command
		seq   string
	}
	var uses []use
	producedAt := make(map[string]int)

	dir := "."
	seenArtifact := make(map[string]bool)
	for i, cmd := range s.Commands {
		a.Stages[i] = Of(cmd.Verb)

		if cmd.Verb == "cd" {
			dir = changeDir(dir, cmd.Arg(0))
			continue
		}

		f := flowOf(cmd)
		for _, c := range f.consumes {
			uses = append(uses, use{index: i, cmd: cmd, seq: resolve(dir, c)})
		}
		for _, p := range f.produces {
			full := resolve(dir, p)
			if _, ok := producedAt[full]; !ok {
				producedAt[full] = i
				a.Produced = append(a.Produced, Sequence{Path: full, Index: i, Verb: cmd.Verb})
			}
		}
		for _, w := range f.writes {
			full := resolve(dir, w)
			if !seenArtifact[full] {
				seenArtifact[full] = true
				a.Artifacts = append(a.Artifacts, full)
			}
		}
	}

	for _, u := range uses {
		at, ok := producedAt[u.seq]
		switch {
		case ok && at >= u.index:
			a.Findings = append(a.Findings, Finding{
				Index:    u.index,
				Line:     u.cmd.Line,
				Verb:     u.cmd.Verb,
				Sequence: u.seq,
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s uses %s, which is only produced by %s at command %d", u.cmd.Verb, u.seq, s.Commands[at].Verb, at+1),
				Err:      fmt.Errorf("%w: %s needs %s from %s (line %d)", ErrOrderViolation, u.cmd.Verb, u.seq, s.Commands[at].Verb, s.Commands[at].Line),
			})
		case !ok:
			a.Findings = append(a.Findings, Finding{
				Index:    u.index,
				Line:     u.cmd.Line,
				Verb:     u.cmd.Verb,
				Sequence: u.seq,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%s uses %s, which this script does not produce", u.cmd.Verb, u.seq),
			})
		}
	}

	return a
}

func flowOf(cmd script.Command) flow {
	var f flow
	seq := seqName(cmd.Arg(0))

	switch cmd.Verb {
	case "convert", "convertraw", "link":
		if seq == "" {
			return f
		}
		out, ok := cmd.Flag("out")
		if !ok {
			out = "."
		}
		f.produces = append(f.produces, path.Join(out, seq))

	case "calibrate", "preprocess":
		f.consume(seq)
		f.produce(prefixed(cmd, seq, "pp_"))

	case "register":
		f.consume(seq)
		if !cmd.HasFlag("2pass") {
			f.produce(prefixed(cmd, seq, "r_"))
		}

	case "seqapplyreg":
		f.consume(seq)
		f.produce(prefixed(cmd, seq, "r_"))

	case "seqsubsky":
		f.consume(seq)
		f.produce(prefixed(cmd, seq, "bkg_"))

	case "merge":
		pos := cmd.Positional()
		if len(pos) < 2 {
			return f
		}
		for _, in := range pos[:len(pos)-1] {
			f.consume(seqName(in))
		}
		f.produce(seqName(pos[len(pos)-1]))

	case "stack":
		f.consume(seq)
		if out, ok := cmd.Flag("out"); ok {
			f.writes = append(f.writes, out)
		} else if seq != "" {
			f.writes = append(f.writes, seq+"_stacked")
		}

	case "seqstat":
		f.consume(seq)
		if csv := cmd.Arg(1); csv != "" {
			f.writes = append(f.writes, csv)
		}

	case "save", "savefits", "savetif", "savetif8", "savetif32", "savejpg", "savepng", "savepnm", "savebmp":
		if name := cmd.Arg(0); name != "" {
			f.writes = append(f.writes, name)
		}
	}
	return f
}

func (f *flow) consume(seq string) {
	if seq != "" {
		f.consumes = append(f.consumes, seq)
	}
}

func (f *flow) produce(seq string) {
	if seq != "" {
		f.produces = append(f.produces, seq)
	}
}

// prefixed applies the command's -prefix= flag, or def, to the base name of
// seq.
func prefixed(cmd script.Command, seq, def string) string {
	if seq == "" {
		return ""
	}
	prefix, ok := cmd.Flag("prefix")
	if !ok {
		prefix = def
	}
	d, base := path.Split(seq)
	return d + prefix + base
}

// seqName strips a trailing ".seq" so "light" and "light.seq" match.
func seqName(arg string) string {
	return strings.TrimSuffix(arg, ".seq")
}

func changeDir(dir, target string) string {
	if target == "" {
		return dir
	}
	return resolve(dir, target)
}

func resolve(dir, p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(dir, p)
}
