package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/shell"
	"mcp-shell-server/pkg/toolerr"
)

// RegisterShellTools registers the command execution and navigation tools.
func RegisterShellTools(registry *Registry, svcs *Services) {
	registry.Register("shell_exec", makeShellExecHandler(svcs))
	registry.Register("cd", makeCdHandler(svcs))
}

// ShellExec runs a command in the session's active directory, inside the
// virtual environment found there when auto_env allows it.
func (s *Services) ShellExec(ctx context.Context, sess *project.Session, in ShellExecRequest) ShellExecResponse {
	autoEnv := in.AutoEnv == nil || *in.AutoEnv
	dir := sess.Dir()

	venv := ""
	if autoEnv {
		venv = s.Projects.DetectVenv(dir)
	}
	kind := "shell"
	if venv != "" {
		kind = "venv_shell"
	}

	logData := fmt.Sprintf("command=%q dir=%s", in.Command, dir)
	if venv != "" {
		logData += " venv=" + venv
	}
	s.Log.Start(kind, logData)

	res, err := s.Shell.Exec(ctx, shell.Request{
		Command: in.Command,
		Dir:     dir,
		Venv:    venv,
		Timeout: time.Duration(in.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		s.Log.Done(kind, logData, false)
		return ShellExecResponse{
			Stderr:   toolerr.MessageOf(err),
			ExitCode: -1,
			Error:    string(toolerr.CodeOf(err)),
		}
	}
	s.Log.Done(kind, logData, res.Success)

	return ShellExecResponse{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Success:   res.Success,
		ExitCode:  res.ExitCode,
		TimedOut:  res.TimedOut,
		Truncated: res.Truncated,
		Venv:      res.Venv,
	}
}

// Cd changes the session's active directory.
func (s *Services) Cd(ctx context.Context, sess *project.Session, in CdRequest) CdResponse {
	logData := fmt.Sprintf("directory=%q", in.Directory)
	s.Log.Start("cd", logData)

	dir, err := s.Projects.Cd(sess, in.Directory)
	if err != nil {
		s.Log.Done("cd", logData, false)
		return CdResponse{
			Message:          toolerr.MessageOf(err),
			CurrentDirectory: sess.Dir(),
			Error:            string(toolerr.CodeOf(err)),
		}
	}
	s.Log.Done("cd", logData, true)
	slog.Debug("Changed directory", "session", sess.ID(), "path", dir)

	return CdResponse{
		Success:          true,
		Message:          fmt.Sprintf("Successfully changed to directory '%s'", in.Directory),
		CurrentDirectory: dir,
	}
}

// --- Shell Exec ---

func makeShellExecHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[ShellExecRequest](params)
		if perr != nil {
			return nil, perr
		}
		if req.Command == "" {
			return nil, mcp.NewError(mcp.CodeInvalidInput, "command is required", nil)
		}
		return svcs.ShellExec(ctx, sess, req), nil
	}
}

// --- Cd ---

func makeCdHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[CdRequest](params)
		if perr != nil {
			return nil, perr
		}
		return svcs.Cd(ctx, sess, req), nil
	}
}
