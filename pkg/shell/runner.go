// Package shell runs client commands through the system shell inside a
// project directory, optionally with a Python virtual environment activated.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"

	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/toolerr"
)

const (
	DefaultTimeout        = 120 * time.Second
	DefaultMaxOutputChars = 100000

	waitDelay = 2 * time.Second
)

// Options configure a Runner. Zero values fall back to the defaults.
type Options struct {
	Timeout        time.Duration
	MaxOutputChars int
	// Fs is used to validate virtual environments.
	Fs afero.Fs
}

// Request is a single command invocation.
type Request struct {
	Command string
	Dir     string
	// Venv is the virtual environment to activate first, if any.
	Venv string
	// Timeout overrides the runner timeout when positive.
	Timeout time.Duration
}

// Result is what a command produced.
type Result struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Success   bool   `json:"success"`
	ExitCode  int    `json:"exit_code"`
	TimedOut  bool   `json:"timed_out"`
	Truncated bool   `json:"truncated"`
	Venv      string `json:"venv,omitempty"`
}

// Runner executes shell commands.
type Runner struct {
	timeout  time.Duration
	maxChars int
	fs       afero.Fs
}

// NewRunner returns a runner with the given options.
func NewRunner(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxOutputChars <= 0 {
		opts.MaxOutputChars = DefaultMaxOutputChars
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Runner{timeout: opts.Timeout, maxChars: opts.MaxOutputChars, fs: opts.Fs}
}

// Exec runs req.Command and waits for it. Command failures are reported in
// the result; the error is reserved for requests that cannot be run at all.
func (r *Runner) Exec(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, toolerr.New(toolerr.CodeInvalidInput, "command is required")
	}

	res := &Result{Venv: req.Venv, ExitCode: -1}
	line := req.Command
	if req.Venv != "" {
		activate, problem := r.checkVenv(req.Venv)
		if problem != "" {
			res.Stderr = problem
			return res, nil
		}
		line = activationPrefix(activate) + req.Command
	}

	timeout := r.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, line)
	cmd.Dir = req.Dir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	slog.Debug("Shell command finished", "dir", req.Dir, "duration", time.Since(start), "timedOut", res.TimedOut, "error", err)

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	errText := stderr.String()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !res.TimedOut {
		errText += fmt.Sprintf("Error executing command: %v", err)
	}
	if res.TimedOut {
		errText += fmt.Sprintf("\ncommand timed out after %s", timeout)
	}

	var outCut, errCut bool
	res.Stdout, outCut = sanitize(stdout.String(), r.maxChars)
	res.Stderr, errCut = sanitize(errText, r.maxChars)
	res.Truncated = outCut || errCut
	res.Success = err == nil && res.ExitCode == 0
	return res, nil
}

// checkVenv returns the activation script of venv, or a problem
// description when venv is not usable.
func (r *Runner) checkVenv(venv string) (activate, problem string) {
	if ok, _ := afero.IsDir(r.fs, venv); !ok {
		return "", fmt.Sprintf("Error: Virtual environment directory '%s' does not exist.", venv)
	}
	activate = project.ActivateScript(venv)
	if ok, _ := afero.Exists(r.fs, activate); !ok {
		return "", fmt.Sprintf("Error: '%s' does not appear to be a valid virtual environment.", venv)
	}
	return activate, ""
}

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}

func activationPrefix(activate string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`call "%s" && `, activate)
	}
	return fmt.Sprintf(`. "%s" && `, activate)
}
