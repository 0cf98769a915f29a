package shell

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-shell-server/pkg/toolerr"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX sh")
	}
}

func TestExecCapturesStreams(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	r := NewRunner(Options{})

	res, err := r.Exec(context.Background(), Request{Command: "pwd; echo oops >&2", Dir: dir})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)

	// the temp dir may sit behind a symlink
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(res.Stdout))
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestExecReportsFailure(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(Options{})

	res, err := r.Exec(context.Background(), Request{Command: "exit 3", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)

	res, err = r.Exec(context.Background(), Request{Command: "true", Dir: filepath.Join(t.TempDir(), "gone")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "Error executing command")
}

func TestExecTimeout(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(Options{Timeout: time.Minute})

	res, err := r.Exec(context.Background(), Request{Command: "exec sleep 5", Dir: t.TempDir(), Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "command timed out after 200ms")
}

func TestExecRejectsEmptyCommand(t *testing.T) {
	_, err := NewRunner(Options{}).Exec(context.Background(), Request{Command: "  "})
	assert.Equal(t, toolerr.CodeInvalidInput, toolerr.CodeOf(err))
}

func TestExecWithVenv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	venv := filepath.Join(dir, ".venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "activate"), []byte("export VENV_MARKER=active\n"), 0o644))

	r := NewRunner(Options{})
	res, err := r.Exec(context.Background(), Request{Command: "echo $VENV_MARKER", Dir: dir, Venv: venv})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "active\n", res.Stdout)
	assert.Equal(t, venv, res.Venv)

	res, err = r.Exec(context.Background(), Request{Command: "true", Dir: dir, Venv: filepath.Join(dir, "nope")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "does not exist")

	require.NoError(t, os.Mkdir(filepath.Join(dir, "env"), 0o755))
	res, err = r.Exec(context.Background(), Request{Command: "true", Dir: dir, Venv: filepath.Join(dir, "env")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Stderr, "does not appear to be a valid virtual environment")
}

func TestExecSanitizesAndTruncates(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(Options{MaxOutputChars: 5})

	res, err := r.Exec(context.Background(), Request{Command: `printf '\033[31mred\033[0m and more'`, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "red a", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestSanitize(t *testing.T) {
	out, cut := sanitize("\x1b[1;32mok\x1b[0m\tdone\x07\r\n", 100)
	assert.Equal(t, "ok\tdone\r\n", out)
	assert.False(t, cut)

	out, cut = sanitize("héllo wörld", 4)
	assert.Equal(t, "héll", out)
	assert.True(t, cut)

	out, cut = sanitize("\x1b]0;title\x07plain", 0)
	assert.Equal(t, "plain", out)
	assert.False(t, cut)
}
