// Package cmdlog prints an audit line for every command a client runs when
// command logging is switched on.
package cmdlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes "[ts] [MCP-LOG] [kind] [SUCCESS|FAILED] data" lines.
// The zero value and a nil *Logger are disabled.
type Logger struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	now     func() time.Time
}

// New returns a logger writing to w (stdout when nil).
func New(enabled bool, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{w: w, enabled: enabled, now: time.Now}
}

// Enabled reports whether lines are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Start records a command before it runs.
func (l *Logger) Start(kind, data string) {
	l.write(kind, "", data)
}

// Done records the outcome of a command.
func (l *Logger) Done(kind, data string, success bool) {
	status := "[FAILED]"
	if success {
		status = "[SUCCESS]"
	}
	l.write(kind, status, data)
}

func (l *Logger) write(kind, status, data string) {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now().Format("2006-01-02T15:04:05.000000")
	fmt.Fprintf(l.w, "[%s] [MCP-LOG] [%s] %s %s\n", ts, kind, status, data)
}

// ParseEnabled interprets a MCP_LOG_COMMANDS style value.
func ParseEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
