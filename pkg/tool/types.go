package tool

import (
	"mcp-shell-server/pkg/lineedit"
	"mcp-shell-server/pkg/project"
)

// Optional fields carry omitempty so the inferred input schemas do not
// mark them required.

// ===== Shell and navigation =====

type ShellExecRequest struct {
	Command        string `json:"command" jsonschema:"the shell command to execute"`
	AutoEnv        *bool  `json:"auto_env,omitempty" jsonschema:"activate a Python virtual environment found in the current directory (default true)"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"kill the command after this many seconds"`
}

type ShellExecResponse struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Success   bool   `json:"success"`
	ExitCode  int    `json:"exit_code"`
	TimedOut  bool   `json:"timed_out"`
	Truncated bool   `json:"truncated"`
	Venv      string `json:"venv,omitempty"`
	Error     string `json:"error,omitempty"`
}

type CdRequest struct {
	Directory string `json:"directory" jsonschema:"the directory to change to, relative or inside the work directory"`
}

type CdResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CurrentDirectory string `json:"current_directory"`
	Error            string `json:"error,omitempty"`
}

type CloneRepoRequest struct {
	URL   string `json:"url" jsonschema:"Git repository URL to clone"`
	Reset bool   `json:"reset,omitempty" jsonschema:"delete an existing checkout with the same name and clone again"`
}

type CloneRepoResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CurrentDirectory string `json:"current_directory"`
	Stdout           string `json:"stdout,omitempty"`
	Stderr           string `json:"stderr,omitempty"`
	Error            string `json:"error,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name" jsonschema:"name of the new project"`
}

type CreateProjectResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CurrentDirectory string `json:"current_directory"`
	Error            string `json:"error,omitempty"`
}

// ===== Files =====

type ReadFileRequest struct {
	FilePath        string `json:"file_path" jsonschema:"path to the file, relative paths start from the current directory"`
	StartLine       *int   `json:"start_line,omitempty" jsonschema:"first line to read, 1-based (default 1)"`
	EndLine         *int   `json:"end_line,omitempty" jsonschema:"last line to read, inclusive (default end of file)"`
	ShowLineNumbers bool   `json:"show_line_numbers,omitempty" jsonschema:"prefix every line with its number"`
}

type ReadFileResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Content         string `json:"content"`
	TotalLines      int    `json:"total_lines"`
	LinesRead       int    `json:"lines_read"`
	StartLine       int    `json:"start_line"`
	EndLine         *int   `json:"end_line"`
	ShowLineNumbers bool   `json:"show_line_numbers"`
	Error           string `json:"error,omitempty"`
}

type ReplaceLinesRequest struct {
	FilePath   string `json:"file_path" jsonschema:"path to the file"`
	StartLine  int    `json:"start_line" jsonschema:"first line of the range, 1-based"`
	NewContent string `json:"new_content" jsonschema:"text to insert or to replace the range with"`
	EndLine    *int   `json:"end_line,omitempty" jsonschema:"last line to replace, inclusive; omit to insert before start_line"`
	DryRun     bool   `json:"dry_run,omitempty" jsonschema:"show the diff without modifying the file"`
}

type ReplaceLinesResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Diff    string          `json:"diff,omitempty"`
	DryRun  bool            `json:"dry_run"`
	Stats   *lineedit.Stats `json:"stats,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type GetImageRequest struct {
	Path string `json:"path" jsonschema:"path to the image file, relative paths start from the current directory"`
}

type GetImageResponse struct {
	Success    bool   `json:"success"`
	MIMEType   string `json:"mime_type,omitempty"`
	Data       string `json:"data,omitempty"` // base64
	Size       int    `json:"size,omitempty"`
	Compressed bool   `json:"compressed,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ===== Projects and git =====

type ListProjectsRequest struct{}

type ListProjectsResponse struct {
	Projects []string `json:"projects"`
}

type ActiveProjectRequest struct{}

type ActiveProjectResponse struct {
	ActiveProject    string `json:"active_project"`
	CurrentDirectory string `json:"current_directory"`
}

type GitLogRequest struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of commits (default 10)"`
}

type GitLogResponse struct {
	Success bool                 `json:"success"`
	Commits []project.CommitInfo `json:"commits"`
	Message string               `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type GitCommitRequest struct {
	Message string `json:"message" jsonschema:"commit message"`
	Author  string `json:"author,omitempty" jsonschema:"author name (default mcp-client)"`
}

type GitCommitResponse struct {
	Success bool   `json:"success"`
	Commit  string `json:"commit,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
