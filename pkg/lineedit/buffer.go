package lineedit

import "strings"

// LineBuffer holds a file's lines, each with its own terminator. Only the
// last line may lack one.
type LineBuffer []string

// SplitLines splits s after every "\n". Joining the result gives back s.
func SplitLines(s string) LineBuffer {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Len returns the number of lines.
func (b LineBuffer) Len() int {
	return len(b)
}

// String reassembles the buffer.
func (b LineBuffer) String() string {
	return strings.Join(b, "")
}

// splice returns a new buffer with b[from:to] replaced by repl. b is not
// modified.
func (b LineBuffer) splice(from, to int, repl LineBuffer) LineBuffer {
	out := make(LineBuffer, 0, len(b)-(to-from)+len(repl))
	out = append(out, b[:from]...)
	out = append(out, repl...)
	out = append(out, b[to:]...)
	return out
}
