// Package transport serves the JSON envelope protocol over a byte stream,
// one request per line.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mcp-shell-server/pkg/mcp"
)

// Handler answers a single envelope request.
type Handler func(ctx context.Context, req *mcp.Request) *mcp.Response

// RunLines reads newline-delimited JSON requests from r, passes them to
// handler, and writes each JSON response on its own line to w. It returns
// nil at EOF and stops early when ctx is done.
func RunLines(ctx context.Context, r io.Reader, w io.Writer, handler Handler) error {
	slog.Info("Starting JSON-lines listener")
	reader := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading request: %w", readErr)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			if err := serveLine(ctx, line, w, handler); err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			slog.Info("EOF received, shutting down JSON-lines listener")
			return nil
		}
	}
}

func serveLine(ctx context.Context, line []byte, w io.Writer, handler Handler) error {
	var req mcp.Request
	if err := json.Unmarshal(line, &req); err != nil {
		slog.Error("Failed to decode request", "error", err, "raw_request", string(line))
		return sendResponse(w, &mcp.Response{
			Error: mcp.NewError(mcp.CodeInvalidInput, "Failed to parse JSON request", nil),
		})
	}

	slog.Debug("Received request", "tool", req.Tool, "id", string(req.ID))
	if err := sendResponse(w, handler(ctx, &req)); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// sendResponse marshals and writes a response followed by a newline.
func sendResponse(w io.Writer, resp *mcp.Response) error {
	slog.Debug("Sending response", "id", string(resp.ID))
	respBytes, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(append(respBytes, '\n'))
	return err
}
