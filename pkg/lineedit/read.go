package lineedit

import (
	"fmt"
	"strconv"
	"strings"

	"mcp-shell-server/pkg/toolerr"
)

// Excerpt is a contiguous run of lines taken from a file.
type Excerpt struct {
	Content  string
	Total    int
	Read     int
	Start    int
	End      int
	Numbered bool
	Message  string
}

// ReadRange returns lines start..end (1-based, inclusive) of content. A nil
// end, or one past the last line, reads to the end of the file. A start past
// the end is not an error: the excerpt is simply empty.
func ReadRange(content string, start int, end *int, numbered bool) (*Excerpt, error) {
	if start < 1 {
		return nil, toolerr.New(toolerr.CodeRange, "Invalid start_line: %d. Line numbers are 1-based.", start)
	}
	if end != nil && *end < start {
		return nil, toolerr.New(toolerr.CodeRange, "Invalid range: start_line=%d, end_line=%d", start, *end)
	}

	lines := SplitLines(content)
	total := lines.Len()
	ex := &Excerpt{Total: total, Start: start, Numbered: numbered}
	if end != nil {
		ex.End = *end
	}
	if total == 0 {
		ex.Message = "File is empty"
		return ex, nil
	}

	last := total
	if end != nil && *end < total {
		last = *end
	}
	ex.End = last

	if start > total {
		ex.Message = fmt.Sprintf("start_line (%d) is beyond file length (%d). No lines returned.", start, total)
		return ex, nil
	}

	selected := lines[start-1 : last]
	ex.Read = len(selected)
	if numbered {
		width := len(strconv.Itoa(last))
		var sb strings.Builder
		for i, line := range selected {
			fmt.Fprintf(&sb, "%*d: %s", width, start+i, line)
		}
		ex.Content = sb.String()
	} else {
		ex.Content = selected.String()
	}

	suffix := ""
	if numbered {
		suffix = " (with line numbers)"
	}
	if start == 1 && last == total {
		ex.Message = fmt.Sprintf("Read entire file (%d lines)%s", total, suffix)
	} else {
		ex.Message = fmt.Sprintf("Read lines %d-%d (%d lines) from file with %d total lines%s", start, last, ex.Read, total, suffix)
	}
	return ex, nil
}
