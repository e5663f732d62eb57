package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Report describes how a serving directory compares to a plan.
type Report struct {
	// Missing lists expected files absent from the serving directory.
	Missing []string
	// Nested lists cmgen per-input directories left in the serving directory.
	Nested []string
	// Diff is a unified diff of the expected file list against what exists.
	Diff string
}

// Complete reports whether every expected file exists and nothing is nested.
func (r *Report) Complete() bool {
	return len(r.Missing) == 0 && len(r.Nested) == 0
}

// Verify checks a resolved plan's outputs against serveDir.
func Verify(serveDir string, plan Plan) (*Report, error) {
	expected, err := plan.Expected()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	present := make([]string, 0, len(expected))

	for _, name := range expected {
		info, statErr := os.Stat(filepath.Join(serveDir, name))
		if statErr != nil || info.IsDir() {
			report.Missing = append(report.Missing, name)
			continue
		}

		present = append(present, name)
	}

	for _, s := range plan.EnvMapStems() {
		if info, statErr := os.Stat(filepath.Join(serveDir, s)); statErr == nil && info.IsDir() {
			report.Nested = append(report.Nested, s)
		}
	}

	if len(report.Missing) > 0 {
		diff, diffErr := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        lines(expected),
			B:        lines(present),
			FromFile: "expected",
			ToFile:   serveDir,
			Context:  1,
		})
		if diffErr != nil {
			return nil, fmt.Errorf("computing diff: %w", diffErr)
		}

		report.Diff = diff
	}

	return report, nil
}

func lines(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "\n"
	}

	return out
}

// String summarises the report on one line.
func (r *Report) String() string {
	if r.Complete() {
		return "serving directory complete"
	}

	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) missing", len(r.Missing)))
	}

	if len(r.Nested) > 0 {
		parts = append(parts, fmt.Sprintf("nested output left in %s", strings.Join(r.Nested, ", ")))
	}

	return strings.Join(parts, ", ")
}
