package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/project"
)

// HandlerFunc defines the signature for a tool handler function.
// It takes the caller's project session and the raw request parameters and
// returns a result or a protocol error.
type HandlerFunc func(ctx context.Context, sess *project.Session, params json.RawMessage) (any, *mcp.Error)

// Registry holds a map of tool names to their handler functions.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a new tool handler to the registry.
func (r *Registry) Register(toolName string, handler HandlerFunc) {
	if _, exists := r.handlers[toolName]; exists {
		slog.Warn("Overwriting an existing tool handler", "tool", toolName)
	}
	r.handlers[toolName] = handler
	slog.Debug("Registered tool handler", "tool", toolName)
}

// Has reports whether toolName is registered.
func (r *Registry) Has(toolName string) bool {
	_, ok := r.handlers[toolName]
	return ok
}

// Names lists the registered tools in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch finds the appropriate handler for a request and executes it.
func (r *Registry) Dispatch(ctx context.Context, sess *project.Session, req *mcp.Request) *mcp.Response {
	handler, found := r.handlers[req.Tool]
	if !found {
		slog.Warn("No handler found for tool", "tool", req.Tool)
		return &mcp.Response{
			ID:    req.ID,
			Error: mcp.NewError(mcp.CodeNotFound, fmt.Sprintf("Tool '%s' not found", req.Tool), nil),
		}
	}

	params := req.Params
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage(`{}`)
	}

	result, mcpErr := handler(ctx, sess, params)
	if mcpErr != nil {
		return &mcp.Response{
			ID:    req.ID,
			Error: mcpErr,
		}
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal tool result", "error", err, "tool", req.Tool)
		return &mcp.Response{
			ID:    req.ID,
			Error: mcp.NewError(mcp.CodeInternal, "Failed to serialize tool result", nil),
		}
	}

	return &mcp.Response{
		ID:     req.ID,
		Result: resultBytes,
	}
}

// decodeParams unmarshals params into a T, mapping failures to INVALID_INPUT.
func decodeParams[T any](params json.RawMessage) (T, *mcp.Error) {
	var in T
	if err := json.Unmarshal(params, &in); err != nil {
		return in, mcp.NewError(mcp.CodeInvalidInput, "Failed to parse parameters", err.Error())
	}
	return in, nil
}

// RegisterAll registers every tool backed by svcs.
func RegisterAll(registry *Registry, svcs *Services) {
	RegisterShellTools(registry, svcs)
	RegisterFileTools(registry, svcs)
	RegisterProjectTools(registry, svcs)
}
