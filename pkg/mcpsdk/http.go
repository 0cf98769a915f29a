package mcpsdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-shell-server/pkg/auth"
	"mcp-shell-server/pkg/events"
	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/tool"
)

const (
	authRealm = "mcp"

	// SessionHeader carries the project session of REST calls.
	SessionHeader = "X-Session-Id"

	maxRESTBody     = 10 << 20
	shutdownTimeout = 5 * time.Second
)

// HTTPOptions configure RunHTTP.
type HTTPOptions struct {
	Host       string
	Port       int
	AuthTokens []string
	// WatchFS publishes changes made outside the server to /events.
	WatchFS bool
}

// NewHTTPHandler mounts the streamable MCP endpoint at /shell and /mcp, the
// REST mirror of the tools under /api/tools/{toolName}, the project event
// stream at /events and an unauthenticated /healthz. When tokens are
// configured every endpoint but /healthz requires a bearer token.
func NewHTTPHandler(svcs *tool.Services, registry *tool.Registry, hub *events.Hub, authTokens []string) http.Handler {
	server := buildServer(svcs)

	// Tool handlers find their project session through the MCP session id.
	streamable := sdkmcp.NewStreamableHTTPHandler(func(r *http.Request) *sdkmcp.Server {
		return server
	}, nil)

	tokens := auth.NewTokens(authTokens)
	mux := http.NewServeMux()

	protected := []struct {
		pattern string
		h       http.Handler
	}{
		{"/shell", streamable},
		{"/mcp", streamable},
		{"/api/tools/", restToolsHandler(svcs, registry)},
	}
	for _, p := range protected {
		mux.Handle(p.pattern, tokens.Require(authRealm, false, p.h))
	}

	// EventSource clients cannot set headers, so /events also takes ?token=.
	mux.Handle("/events", tokens.Require(authRealm, true, events.SSEHandler(hub, svcs.Projects.HasProject)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// RunHTTP serves NewHTTPHandler until ctx is cancelled.
func RunHTTP(ctx context.Context, svcs *tool.Services, registry *tool.Registry, hub *events.Hub, opts HTTPOptions) error {
	if opts.WatchFS {
		w, err := events.StartWatcher(svcs.Projects.RootPath(), hub)
		if err != nil {
			slog.Warn("Failed to start fs watcher", "error", err)
		} else {
			defer w.Close()
		}
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(svcs, registry, hub, opts.AuthTokens),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting MCP SDK HTTP server", "host", opts.Host, "port", opts.Port, "addr", addr, "auth_enabled", auth.NewTokens(opts.AuthTokens).Enabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down MCP SDK HTTP server", "open_sessions", svcs.Projects.SessionCount())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// REST mirror: POST /api/tools/{toolName}
//
// The body holds the tool parameters. The project session is taken from the
// X-Session-Id header and echoed back. Without one the call runs in a
// throwaway session at the work directory root.
func restToolsHandler(svcs *tool.Services, registry *tool.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		toolName := strings.TrimPrefix(r.URL.Path, "/api/tools/")
		if toolName == "" || strings.Contains(toolName, "/") || !registry.Has(toolName) {
			http.NotFound(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRESTBody))
		if err != nil {
			writeRESTError(w, mcp.NewError(mcp.CodeInvalidInput, err.Error(), nil))
			return
		}

		var sess *project.Session
		if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
			sess = svcs.Projects.Session(id)
			w.Header().Set(SessionHeader, sess.ID())
		} else {
			// one-shot call: nothing can refer to this session afterwards
			sess = svcs.Projects.NewSession()
			defer svcs.Projects.CloseSession(sess.ID())
		}

		ctx := tool.WithActor(r.Context(), events.ActorAPI)
		resp := registry.Dispatch(ctx, sess, &mcp.Request{Tool: toolName, Params: body})
		if resp.Error != nil {
			writeRESTError(w, resp.Error)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Result)
	})
}

func writeRESTError(w http.ResponseWriter, err error) {
	code := httpStatusFromError(err)
	http.Error(w, err.Error(), code)
}

func httpStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, mcp.CodeInvalidInput+":"):
		return http.StatusBadRequest
	case strings.HasPrefix(msg, mcp.CodeNotFound+":"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
