package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mcp-shell-server/pkg/events"
	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/toolerr"
)

// RegisterProjectTools registers the project and git tools.
func RegisterProjectTools(registry *Registry, svcs *Services) {
	registry.Register("clone_repo", makeCloneRepoHandler(svcs))
	registry.Register("create_project", makeCreateProjectHandler(svcs))
	registry.Register("list_projects", makeListProjectsHandler(svcs))
	registry.Register("active_project", makeActiveProjectHandler(svcs))
	registry.Register("git_log", makeGitLogHandler(svcs))
	registry.Register("git_commit", makeGitCommitHandler(svcs))
}

// CloneRepo clones a repository into the work directory and switches the
// session into it.
func (s *Services) CloneRepo(ctx context.Context, sess *project.Session, in CloneRepoRequest) CloneRepoResponse {
	logData := fmt.Sprintf("url=%q reset=%t", in.URL, in.Reset)
	s.Log.Start("git_clone", logData)

	res, err := s.Projects.Clone(ctx, sess, in.URL, in.Reset)
	if err != nil {
		s.Log.Done("git_clone", logData, false)
		resp := CloneRepoResponse{
			Message:          toolerr.MessageOf(err),
			CurrentDirectory: sess.Dir(),
			Error:            string(toolerr.CodeOf(err)),
		}
		if res != nil {
			resp.Stderr = res.Output
		}
		if cause := errors.Unwrap(err); cause != nil {
			resp.Stderr += cause.Error()
		}
		return resp
	}
	s.Log.Done("git_clone", logData, true)

	if !res.Existed {
		s.publishProject(ctx, sess, res.Path, events.ProjectEvent{
			Type:    events.TypeProjectCloned,
			IsDir:   true,
			Summary: res.URL,
		})
	}
	return CloneRepoResponse{
		Success:          true,
		Message:          res.Message,
		CurrentDirectory: sess.Dir(),
		Stderr:           res.Output,
	}
}

// CreateProject creates a new git initialized project and switches the
// session into it.
func (s *Services) CreateProject(ctx context.Context, sess *project.Session, in CreateProjectRequest) CreateProjectResponse {
	logData := fmt.Sprintf("name=%q", in.Name)
	s.Log.Start("create_project", logData)

	path, err := s.Projects.Create(sess, in.Name)
	if err != nil {
		s.Log.Done("create_project", logData, false)
		return CreateProjectResponse{
			Message:          toolerr.MessageOf(err),
			CurrentDirectory: sess.Dir(),
			Error:            string(toolerr.CodeOf(err)),
		}
	}
	s.Log.Done("create_project", logData, true)

	s.publishProject(ctx, sess, path, events.ProjectEvent{
		Type:    events.TypeProjectCreated,
		IsDir:   true,
		Summary: in.Name,
	})
	return CreateProjectResponse{
		Success:          true,
		Message:          fmt.Sprintf("Created project '%s' at '%s'", filepath.Base(path), path),
		CurrentDirectory: path,
	}
}

// ListProjects lists the directories directly under the work directory.
func (s *Services) ListProjects(ctx context.Context) (ListProjectsResponse, error) {
	s.Log.Start("resource", "projects://")
	names, err := s.Projects.ListProjects()
	s.Log.Done("resource", "projects://", err == nil)
	if err != nil {
		return ListProjectsResponse{}, err
	}
	return ListProjectsResponse{Projects: names}, nil
}

// ActiveProject names the project the session is working in.
func (s *Services) ActiveProject(ctx context.Context, sess *project.Session) ActiveProjectResponse {
	return ActiveProjectResponse{
		ActiveProject:    s.Projects.ActiveProject(sess),
		CurrentDirectory: sess.Dir(),
	}
}

// GitLog lists recent commits of the active project.
func (s *Services) GitLog(ctx context.Context, sess *project.Session, in GitLogRequest) GitLogResponse {
	logData := fmt.Sprintf("dir=%s limit=%d", sess.Dir(), in.Limit)
	s.Log.Start("git_log", logData)

	commits, err := s.Projects.History(sess, in.Limit)
	if err != nil {
		s.Log.Done("git_log", logData, false)
		return GitLogResponse{
			Commits: []project.CommitInfo{},
			Message: toolerr.MessageOf(err),
			Error:   string(toolerr.CodeOf(err)),
		}
	}
	s.Log.Done("git_log", logData, true)
	return GitLogResponse{
		Success: true,
		Commits: commits,
		Message: fmt.Sprintf("%d commits", len(commits)),
	}
}

// GitCommit stages and commits every change in the active project.
func (s *Services) GitCommit(ctx context.Context, sess *project.Session, in GitCommitRequest) GitCommitResponse {
	logData := fmt.Sprintf("dir=%s message=%q", sess.Dir(), in.Message)
	s.Log.Start("git_commit", logData)

	hash, err := s.Projects.Commit(sess, in.Message, in.Author)
	if err != nil {
		s.Log.Done("git_commit", logData, false)
		return GitCommitResponse{
			Message: toolerr.MessageOf(err),
			Error:   string(toolerr.CodeOf(err)),
		}
	}
	s.Log.Done("git_commit", logData, true)

	subject, _, _ := strings.Cut(in.Message, "\n")
	s.publishProject(ctx, sess, sess.Dir(), events.ProjectEvent{
		Type:    events.TypeGitCommitted,
		Commit:  hash,
		Summary: subject,
	})
	return GitCommitResponse{
		Success: true,
		Commit:  hash,
		Message: fmt.Sprintf("Committed %s: %s", shortHash(hash), subject),
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// --- Clone Repo ---

func makeCloneRepoHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[CloneRepoRequest](params)
		if perr != nil {
			return nil, perr
		}
		if req.URL == "" {
			return nil, mcp.NewError(mcp.CodeInvalidInput, "url is required", nil)
		}
		return svcs.CloneRepo(ctx, sess, req), nil
	}
}

// --- Create Project ---

func makeCreateProjectHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[CreateProjectRequest](params)
		if perr != nil {
			return nil, perr
		}
		if req.Name == "" {
			return nil, mcp.NewError(mcp.CodeInvalidInput, "Project name cannot be empty", nil)
		}
		return svcs.CreateProject(ctx, sess, req), nil
	}
}

// --- List Projects ---

func makeListProjectsHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		resp, err := svcs.ListProjects(ctx)
		if err != nil {
			return nil, mcp.NewError(mcp.CodeInternal, "Failed to list projects", err.Error())
		}
		return resp, nil
	}
}

// --- Active Project ---

func makeActiveProjectHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		return svcs.ActiveProject(ctx, sess), nil
	}
}

// --- Git Log ---

func makeGitLogHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[GitLogRequest](params)
		if perr != nil {
			return nil, perr
		}
		return svcs.GitLog(ctx, sess, req), nil
	}
}

// --- Git Commit ---

func makeGitCommitHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[GitCommitRequest](params)
		if perr != nil {
			return nil, perr
		}
		return svcs.GitCommit(ctx, sess, req), nil
	}
}
