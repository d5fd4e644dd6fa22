package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"sirilflow/internal/script"
)

// AlignWorkDir is the directory the images are copied into while they are
// registered. It is created under the workflow directory.
const AlignWorkDir = "align_working"

// alignSequence is the sequence name of the copied images.
const alignSequence = "align"

// ErrTooFewImages indicates an alignment with fewer than two images.
var ErrTooFewImages = errors.New("alignment needs at least two images")

// AlignWorkflow describes the generated alignment workflow.
var AlignWorkflow = Workflow{
	Name:        "align",
	Description: "Register images against each other and save each as <name>-aligned",
	WorkDirs:    []string{AlignWorkDir},
}

// Alignment registers a set of images against each other.
//
// The images are copied into [AlignWorkDir] as one sequence, registered
// with two passes and resampled onto the frame they all share.
// [Alignment.Finish] then moves every registered image next to its source.
type Alignment struct {
	// Root is the directory holding the work directory.
	Root string

	// Files are the absolute image paths in sequence order.
	Files []string
}

// NewAlignment validates files and returns an alignment working in root.
// Duplicate paths are aligned once.
func NewAlignment(root string, files []string) (*Alignment, error) {
	a := &Alignment{Root: root}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		if seen[abs] {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s is not a file", f)
		}
		seen[abs] = true
		a.Files = append(a.Files, abs)
	}
	if len(a.Files) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewImages, len(a.Files))
	}
	return a, nil
}

// Script returns the engine commands that register the copied sequence.
func (a *Alignment) Script() *script.Script {
	s := &script.Script{
		Name:     AlignWorkflow.Name,
		Requires: semver.MustParse("1.2.0"),
	}
	for _, c := range [][]string{
		{"cd", AlignWorkDir},
		{"register", alignSequence, "-2pass"},
		{"seqapplyreg", alignSequence, "-framing=min"},
		{"cd", ".."},
	} {
		s.Commands = append(s.Commands, script.NewCommand(c[0], c[1:]...))
	}
	return s
}

// Workflow returns the workflow description of the alignment.
func (a *Alignment) Workflow() *Workflow {
	wf := AlignWorkflow
	wf.WorkDirs = append([]string(nil), AlignWorkflow.WorkDirs...)
	return &wf
}

// Prepare copies the images into the work directory as the align sequence.
// ext is the FITS extension the engine looks for, e.g. ".fit".
func (a *Alignment) Prepare(ext string) error {
	dir := a.workDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", AlignWorkDir, err)
	}
	for i, f := range a.Files {
		if err := copyFile(f, filepath.Join(dir, sequenceFile("", i+1)+ext)); err != nil {
			return fmt.Errorf("failed to copy %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// Finish moves each registered image next to its source as
// <name>-aligned<ext>, replacing an earlier result. ext is the extension
// the engine wrote, looked up in the order of exts. It returns the paths
// written.
func (a *Alignment) Finish(exts []string) ([]string, error) {
	var outputs []string
	for i, f := range a.Files {
		src, ok := findImage(filepath.Join(a.workDir(), sequenceFile("r_", i+1)), exts)
		if !ok {
			return outputs, fmt.Errorf("registered image of %s not found in %s", filepath.Base(f), AlignWorkDir)
		}
		dst := strings.TrimSuffix(f, filepath.Ext(f)) + "-aligned" + filepath.Ext(src)
		if err := moveFile(src, dst); err != nil {
			return outputs, fmt.Errorf("failed to save %s: %w", dst, err)
		}
		outputs = append(outputs, dst)
	}
	return outputs, nil
}

// Cleanup removes the work directory.
func (a *Alignment) Cleanup() error {
	return os.RemoveAll(a.workDir())
}

func (a *Alignment) workDir() string {
	return filepath.Join(a.Root, AlignWorkDir)
}

// sequenceFile names image n of the align sequence, without extension.
func sequenceFile(prefix string, n int) string {
	return fmt.Sprintf("%s%s_%04d", prefix, alignSequence, n)
}

func findImage(base string, exts []string) (string, bool) {
	for _, ext := range exts {
		if info, err := os.Stat(base + ext); err == nil && info.Mode().IsRegular() {
			return base + ext, true
		}
	}
	return "", false
}

// moveFile renames src to dst, copying when they are on different file
// systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
