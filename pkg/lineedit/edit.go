// Package lineedit inserts or replaces 1-based, inclusive line ranges in text
// and previews the change as a unified diff.
package lineedit

import (
	"fmt"

	"mcp-shell-server/pkg/toolerr"
)

// Op is the kind of edit performed.
type Op string

const (
	OpInsert  Op = "insert"
	OpReplace Op = "replace"
)

func (o Op) pastTense() string {
	switch o {
	case OpInsert:
		return "inserted"
	case OpReplace:
		return "replaced"
	}
	return string(o)
}

// Request describes one edit. A nil End inserts NewText before line Start;
// otherwise lines Start..End are replaced.
type Request struct {
	Start   int
	End     *int
	NewText string
}

// Change is the outcome of applying a Request to some content.
type Change struct {
	Op      Op
	Start   int
	End     *int
	Before  LineBuffer
	After   LineBuffer
	Content string
	Diff    string
	Stats   Stats
}

// Apply computes the edited content and its diff. It has no side effects;
// path only labels the diff and error messages.
func Apply(path, content string, req Request) (*Change, error) {
	before := SplitLines(content)
	total := before.Len()

	if req.Start < 1 || req.Start > total+1 {
		return nil, toolerr.New(toolerr.CodeRange,
			"start_line %d is out of range for '%s' (file has %d lines)", req.Start, path, total)
	}

	op := OpInsert
	from, to := req.Start-1, req.Start-1
	if req.End != nil {
		end := *req.End
		if end < req.Start || end > total {
			return nil, toolerr.New(toolerr.CodeRange,
				"end_line %d is invalid for '%s' (must be >= %d and <= %d)", end, path, req.Start, total)
		}
		op = OpReplace
		to = end
	}

	spliced := before.splice(from, to, SplitLines(req.NewText))
	modified := spliced.String()
	// Adjacent fragments without terminators merge into one line on disk, so
	// the diff is computed against the file as it will actually read back.
	after := SplitLines(modified)

	diff, err := UnifiedDiff(path, before, after)
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CodeInternal, err, "failed to render diff for '%s'", path)
	}

	return &Change{
		Op:      op,
		Start:   req.Start,
		End:     req.End,
		Before:  before,
		After:   after,
		Content: modified,
		Diff:    diff,
		Stats:   ChangeStats(content, modified),
	}, nil
}

// Location renders the edited range as "S" or "S-E".
func (c *Change) Location() string {
	if c.End == nil {
		return fmt.Sprintf("%d", c.Start)
	}
	return fmt.Sprintf("%d-%d", c.Start, *c.End)
}
