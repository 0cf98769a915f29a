package lineedit

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// NoChanges is reported instead of an empty diff.
const NoChanges = "No changes detected"

const (
	diffContext   = 3
	noNewlineMark = "\\ No newline at end of file\n"
)

// UnifiedDiff renders the difference between before and after as a unified
// diff body: hunks only, without the "---"/"+++" file headers.
func UnifiedDiff(path string, before, after LineBuffer) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        markMissingNewline(before),
		B:        markMissingNewline(after),
		FromFile: path + " (before)",
		ToFile:   path + " (after)",
		Context:  diffContext,
	})
	if err != nil {
		return "", err
	}
	parts := strings.SplitAfterN(text, "\n", 3)
	if len(parts) < 3 || parts[2] == "" {
		return NoChanges, nil
	}
	return strings.TrimSuffix(parts[2], "\n"), nil
}

// markMissingNewline terminates a trailing partial line and tags it so the
// rendered hunk stays line-oriented.
func markMissingNewline(lines LineBuffer) []string {
	n := len(lines)
	if n == 0 || strings.HasSuffix(lines[n-1], "\n") {
		return lines
	}
	out := make([]string, n)
	copy(out, lines)
	out[n-1] = out[n-1] + "\n" + noNewlineMark
	return out
}

// Stats counts the lines added and removed between two versions.
type Stats struct {
	Added   int `json:"lines_added"`
	Removed int `json:"lines_removed"`
}

// ChangeStats computes line-level statistics with a line-mode diff.
func ChangeStats(before, after string) Stats {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var st Stats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			st.Added += SplitLines(d.Text).Len()
		case diffmatchpatch.DiffDelete:
			st.Removed += SplitLines(d.Text).Len()
		}
	}
	return st
}
