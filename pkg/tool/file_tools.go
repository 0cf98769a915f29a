package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"mcp-shell-server/pkg/events"
	"mcp-shell-server/pkg/lineedit"
	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/media"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/toolerr"
)

// RegisterFileTools registers the file reading, editing and image tools.
func RegisterFileTools(registry *Registry, svcs *Services) {
	registry.Register("read_file", makeReadFileHandler(svcs))
	registry.Register("replace_lines", makeReplaceLinesHandler(svcs))
	registry.Register("get_image", makeGetImageHandler(svcs))
}

// ReadFile returns a line range of a text file.
func (s *Services) ReadFile(ctx context.Context, sess *project.Session, in ReadFileRequest) ReadFileResponse {
	start := 1
	if in.StartLine != nil {
		start = *in.StartLine
	}
	resp := ReadFileResponse{
		StartLine:       start,
		EndLine:         in.EndLine,
		ShowLineNumbers: in.ShowLineNumbers,
	}

	logData := fmt.Sprintf("file_path=%q start_line=%d", in.FilePath, start)
	if in.EndLine != nil {
		logData += fmt.Sprintf(" end_line=%d", *in.EndLine)
	}
	s.Log.Start("read_file", logData)
	fail := func(err error, message string) ReadFileResponse {
		s.Log.Done("read_file", logData, false)
		resp.Message = message
		resp.Error = string(toolerr.CodeOf(err))
		return resp
	}

	abs, err := s.Projects.Resolve(sess, in.FilePath)
	if err != nil {
		return fail(err, toolerr.MessageOf(err))
	}
	content, err := s.Store.ReadText(abs)
	if err != nil {
		return fail(err, readFailureMessage(err, in.FilePath))
	}
	ex, err := lineedit.ReadRange(content, start, in.EndLine, in.ShowLineNumbers)
	if err != nil {
		return fail(err, toolerr.MessageOf(err))
	}
	s.Log.Done("read_file", logData, true)

	resp.Success = true
	resp.Message = ex.Message
	resp.Content = ex.Content
	resp.TotalLines = ex.Total
	resp.LinesRead = ex.Read
	if ex.End > 0 {
		end := ex.End
		resp.EndLine = &end
	}
	return resp
}

func readFailureMessage(err error, path string) string {
	switch toolerr.CodeOf(err) {
	case toolerr.CodeNotFound:
		return fmt.Sprintf("File '%s' does not exist", path)
	case toolerr.CodeNotAFile:
		return fmt.Sprintf("Path '%s' is not a file", path)
	case toolerr.CodeEncoding:
		return fmt.Sprintf("File '%s' is not valid UTF-8 text", path)
	case toolerr.CodePermission:
		return fmt.Sprintf("Permission denied reading '%s'", path)
	default:
		return fmt.Sprintf("Error reading file '%s': %s", path, toolerr.MessageOf(err))
	}
}

// ReplaceLines replaces or inserts a range of lines and reports the diff.
func (s *Services) ReplaceLines(ctx context.Context, sess *project.Session, in ReplaceLinesRequest) ReplaceLinesResponse {
	logData := fmt.Sprintf("file_path=%q start_line=%d dry_run=%t", in.FilePath, in.StartLine, in.DryRun)
	if in.EndLine != nil {
		logData += fmt.Sprintf(" end_line=%d", *in.EndLine)
	}
	s.Log.Start("replace_lines", logData)
	fail := func(err error) ReplaceLinesResponse {
		s.Log.Done("replace_lines", logData, false)
		return ReplaceLinesResponse{
			Message: toolerr.MessageOf(err),
			DryRun:  in.DryRun,
			Error:   string(toolerr.CodeOf(err)),
		}
	}

	abs, err := s.Projects.Resolve(sess, in.FilePath)
	if err != nil {
		return fail(err)
	}
	res, err := s.Editor.ReplaceLines(abs, lineedit.Request{
		Start:   in.StartLine,
		End:     in.EndLine,
		NewText: in.NewContent,
	}, in.DryRun)
	if err != nil {
		return fail(err)
	}
	s.Log.Done("replace_lines", logData, true)

	if res.Committed {
		s.publish(ctx, sess, abs, events.ProjectEvent{
			Type:    events.TypeFileUpdated,
			Summary: res.Message(),
		})
	}
	stats := res.Stats
	return ReplaceLinesResponse{
		Success: true,
		Message: res.Message(),
		Diff:    res.Diff,
		DryRun:  res.DryRun,
		Stats:   &stats,
	}
}

// GetImage loads an image, recompressing it when it is too large to send.
func (s *Services) GetImage(ctx context.Context, sess *project.Session, in GetImageRequest) (*media.Image, error) {
	logData := fmt.Sprintf("path=%q", in.Path)
	s.Log.Start("get_image", logData)

	abs, err := s.Projects.Resolve(sess, in.Path)
	if err != nil {
		s.Log.Done("get_image", logData, false)
		return nil, err
	}
	img, err := s.Images.Load(abs)
	if err != nil {
		s.Log.Done("get_image", logData, false)
		return nil, err
	}
	s.Log.Done("get_image", logData, true)
	return img, nil
}

// --- Read File ---

func makeReadFileHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[ReadFileRequest](params)
		if perr != nil {
			return nil, perr
		}
		if req.FilePath == "" {
			return nil, mcp.NewError(mcp.CodeInvalidInput, "file_path is required", nil)
		}
		return svcs.ReadFile(ctx, sess, req), nil
	}
}

// --- Replace Lines ---

func makeReplaceLinesHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[ReplaceLinesRequest](params)
		if perr != nil {
			return nil, perr
		}
		if req.FilePath == "" {
			return nil, mcp.NewError(mcp.CodeInvalidInput, "file_path is required", nil)
		}
		return svcs.ReplaceLines(ctx, sess, req), nil
	}
}

// --- Get Image ---

func makeGetImageHandler(svcs *Services) HandlerFunc {
	return func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error) {
		req, perr := decodeParams[GetImageRequest](params)
		if perr != nil {
			return nil, perr
		}
		img, err := svcs.GetImage(ctx, sess, req)
		if err != nil {
			return GetImageResponse{
				Message: toolerr.MessageOf(err),
				Error:   string(toolerr.CodeOf(err)),
			}, nil
		}
		return GetImageResponse{
			Success:    true,
			MIMEType:   img.MIMEType,
			Data:       base64.StdEncoding.EncodeToString(img.Data),
			Size:       len(img.Data),
			Compressed: img.Compressed,
		}, nil
	}
}
