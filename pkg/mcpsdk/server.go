// Package mcpsdk exposes the tools through the Model Context Protocol SDK,
// over stdio or streamable HTTP.
package mcpsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/tool"
	"mcp-shell-server/pkg/toolerr"
)

// Version is reported to clients during initialization.
var Version = "0.1.0"

const (
	serverName = "shell"

	// stdioSessionID keys the project session of connections that carry no
	// session id of their own.
	stdioSessionID = "stdio"

	projectsURI      = "projects://"
	activeProjectURI = "active-project://"
)

var toolNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func newTool(name, description string) *sdkmcp.Tool {
	if !toolNameRegex.MatchString(name) {
		panic(fmt.Errorf("invalid tool name: %s (must match ^[a-zA-Z0-9_-]+$)", name))
	}
	return &sdkmcp.Tool{Name: name, Description: description}
}

func destructive(t *sdkmcp.Tool) *sdkmcp.Tool {
	yes := true
	t.Annotations = &sdkmcp.ToolAnnotations{DestructiveHint: &yes}
	return t
}

func readOnly(t *sdkmcp.Tool) *sdkmcp.Tool {
	t.Annotations = &sdkmcp.ToolAnnotations{ReadOnlyHint: true}
	return t
}

// projectSession returns the project session bound to the calling MCP
// session. Every MCP session navigates the work directory on its own.
func projectSession(svcs *tool.Services, ss *sdkmcp.ServerSession) *project.Session {
	return svcs.Projects.Session(projectSessionID(ss))
}

func projectSessionID(ss *sdkmcp.ServerSession) string {
	id := ""
	if ss != nil {
		id = ss.ID()
	}
	if id == "" {
		id = stdioSessionID
	}
	return id
}

// releaseOnClose drops the project session once the client's MCP session
// ends.
func releaseOnClose(svcs *tool.Services) func(context.Context, *sdkmcp.InitializedRequest) {
	return func(ctx context.Context, req *sdkmcp.InitializedRequest) {
		ss := req.Session
		if ss == nil {
			return
		}
		go func() {
			_ = ss.Wait()
			svcs.Projects.CloseSession(projectSessionID(ss))
		}()
	}
}

// buildServer constructs an MCP SDK server and registers tools using typed handlers.
func buildServer(svcs *tool.Services) *sdkmcp.Server {
	impl := &sdkmcp.Implementation{
		Name:    serverName,
		Version: Version,
	}
	server := sdkmcp.NewServer(impl, &sdkmcp.ServerOptions{
		InitializedHandler: releaseOnClose(svcs),
	})

	// shell_exec
	sdkmcp.AddTool[tool.ShellExecRequest, tool.ShellExecResponse](server,
		destructive(newTool("shell_exec", "Execute a shell command in the current directory. A Python virtual environment found there is activated first unless auto_env is false.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.ShellExecRequest) (*sdkmcp.CallToolResult, tool.ShellExecResponse, error) {
			if in.Command == "" {
				return nil, tool.ShellExecResponse{}, fmt.Errorf("INVALID_INPUT: 'command' is required")
			}
			return nil, svcs.ShellExec(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// cd
	sdkmcp.AddTool[tool.CdRequest, tool.CdResponse](server,
		newTool("cd", "Change the current directory. Relative paths start from the current directory; absolute paths must stay inside the work directory."),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.CdRequest) (*sdkmcp.CallToolResult, tool.CdResponse, error) {
			return nil, svcs.Cd(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// clone_repo
	sdkmcp.AddTool[tool.CloneRepoRequest, tool.CloneRepoResponse](server,
		destructive(newTool("clone_repo", "Clone a git repository into the work directory and change into it. With reset, an existing checkout of the same name is deleted first.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.CloneRepoRequest) (*sdkmcp.CallToolResult, tool.CloneRepoResponse, error) {
			if in.URL == "" {
				return nil, tool.CloneRepoResponse{}, fmt.Errorf("INVALID_INPUT: 'url' is required")
			}
			return nil, svcs.CloneRepo(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// create_project
	sdkmcp.AddTool[tool.CreateProjectRequest, tool.CreateProjectResponse](server,
		destructive(newTool("create_project", "Create a new project directory with an initialized git repository and change into it.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.CreateProjectRequest) (*sdkmcp.CallToolResult, tool.CreateProjectResponse, error) {
			if in.Name == "" {
				return nil, tool.CreateProjectResponse{}, fmt.Errorf("INVALID_INPUT: 'name' is required")
			}
			return nil, svcs.CreateProject(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// read_file
	sdkmcp.AddTool[tool.ReadFileRequest, tool.ReadFileResponse](server,
		readOnly(newTool("read_file", "Read a UTF-8 text file, optionally only a 1-based inclusive line range, optionally with line numbers.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.ReadFileRequest) (*sdkmcp.CallToolResult, tool.ReadFileResponse, error) {
			if in.FilePath == "" {
				return nil, tool.ReadFileResponse{}, fmt.Errorf("INVALID_INPUT: 'file_path' is required")
			}
			return nil, svcs.ReadFile(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// replace_lines
	sdkmcp.AddTool[tool.ReplaceLinesRequest, tool.ReplaceLinesResponse](server,
		destructive(newTool("replace_lines", "Replace lines start_line..end_line (1-based, inclusive) of a file with new_content, or insert new_content before start_line when end_line is omitted. Returns a unified diff; dry_run previews without writing.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.ReplaceLinesRequest) (*sdkmcp.CallToolResult, tool.ReplaceLinesResponse, error) {
			if in.FilePath == "" {
				return nil, tool.ReplaceLinesResponse{}, fmt.Errorf("INVALID_INPUT: 'file_path' is required")
			}
			return nil, svcs.ReplaceLines(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// get_image
	sdkmcp.AddTool[tool.GetImageRequest, any](server,
		readOnly(newTool("get_image", "Return an image file as image content. Large images are recompressed as JPEG.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.GetImageRequest) (*sdkmcp.CallToolResult, any, error) {
			img, err := svcs.GetImage(ctx, projectSession(svcs, req.Session), in)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %s", toolerr.CodeOf(err), toolerr.MessageOf(err))
			}
			return &sdkmcp.CallToolResult{
				Content: []sdkmcp.Content{&sdkmcp.ImageContent{Data: img.Data, MIMEType: img.MIMEType}},
			}, nil, nil
		},
	)

	// list_projects
	listTool := readOnly(newTool("list_projects", "List the projects in the work directory."))
	listTool.InputSchema = noArgsSchema()
	sdkmcp.AddTool[tool.ListProjectsRequest, tool.ListProjectsResponse](server, listTool,
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.ListProjectsRequest) (*sdkmcp.CallToolResult, tool.ListProjectsResponse, error) {
			out, err := svcs.ListProjects(ctx)
			if err != nil {
				return nil, tool.ListProjectsResponse{}, fmt.Errorf("INTERNAL: %v", err)
			}
			return nil, out, nil
		},
	)

	// active_project
	activeTool := readOnly(newTool("active_project", "Name the project the current directory belongs to."))
	activeTool.InputSchema = noArgsSchema()
	sdkmcp.AddTool[tool.ActiveProjectRequest, tool.ActiveProjectResponse](server, activeTool,
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.ActiveProjectRequest) (*sdkmcp.CallToolResult, tool.ActiveProjectResponse, error) {
			return nil, svcs.ActiveProject(ctx, projectSession(svcs, req.Session)), nil
		},
	)

	// git_log
	sdkmcp.AddTool[tool.GitLogRequest, tool.GitLogResponse](server,
		readOnly(newTool("git_log", "List recent commits of the repository containing the current directory.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.GitLogRequest) (*sdkmcp.CallToolResult, tool.GitLogResponse, error) {
			return nil, svcs.GitLog(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	// git_commit
	sdkmcp.AddTool[tool.GitCommitRequest, tool.GitCommitResponse](server,
		destructive(newTool("git_commit", "Stage every change in the repository containing the current directory and commit it.")),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in tool.GitCommitRequest) (*sdkmcp.CallToolResult, tool.GitCommitResponse, error) {
			return nil, svcs.GitCommit(ctx, projectSession(svcs, req.Session), in), nil
		},
	)

	addResources(server, svcs)
	return server
}

func addResources(server *sdkmcp.Server, svcs *tool.Services) {
	server.AddResource(&sdkmcp.Resource{
		URI:         projectsURI,
		Name:        "projects",
		Description: "Projects in the work directory",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		out, err := svcs.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out.Projects)
		if err != nil {
			return nil, err
		}
		return &sdkmcp.ReadResourceResult{Contents: []*sdkmcp.ResourceContents{{
			URI:      projectsURI,
			MIMEType: "application/json",
			Text:     string(data),
		}}}, nil
	})

	server.AddResource(&sdkmcp.Resource{
		URI:         activeProjectURI,
		Name:        "active-project",
		Description: "Project of the current directory",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		active := svcs.ActiveProject(ctx, projectSession(svcs, req.Session))
		return &sdkmcp.ReadResourceResult{Contents: []*sdkmcp.ResourceContents{{
			URI:      activeProjectURI,
			MIMEType: "text/plain",
			Text:     active.ActiveProject,
		}}}, nil
	})
}

// RunStdio serves the MCP SDK server over stdio until the client disconnects or ctx is cancelled.
func RunStdio(ctx context.Context, svcs *tool.Services) error {
	server := buildServer(svcs)
	slog.Info("Starting MCP SDK stdio server")
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && err != io.EOF {
		return fmt.Errorf("MCP SDK stdio server exited: %w", err)
	}
	return nil
}
