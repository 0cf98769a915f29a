package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mcp-shell-server/pkg/cmdlog"
	"mcp-shell-server/pkg/config"
	"mcp-shell-server/pkg/events"
	"mcp-shell-server/pkg/mcp"
	"mcp-shell-server/pkg/mcpsdk"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/shell"
	"mcp-shell-server/pkg/tool"
	"mcp-shell-server/pkg/transport"
)

const eventRingCapacity = 200

// flagValues receives the command-line flags before they are layered over
// the file and environment configuration.
type flagValues struct {
	configPath  string
	workdir     string
	transport   string
	host        string
	port        int
	logFormat   string
	logLevel    string
	logCommands bool
	authTokens  string
	watchFS     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Getenv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	f := &flagValues{}
	cmd := &cobra.Command{
		Use:   "mcp-shell-server",
		Short: "MCP server for shell commands and line-range file editing",
		Long: `mcp-shell-server exposes shell execution, directory navigation, git
checkouts, file reading and line-range editing to MCP clients. All paths are
confined to the work directory.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f, getenv)
			if err != nil {
				return err
			}
			setupLogger(cfg, os.Stderr)
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd.Flags(), f)
	return cmd
}

func bindFlags(flags *pflag.FlagSet, f *flagValues) {
	flags.StringVar(&f.configPath, "config", "", "Path to a TOML configuration file (env: MCP_CONFIG)")
	flags.StringVar(&f.workdir, "workdir", "", "Directory every path is confined to (env: WORKDIR, default: home directory)")
	flags.StringVar(&f.transport, "transport", "", "Transport: 'http', 'stdio' or 'jsonl' (env: MCP_TRANSPORT, default: http)")
	flags.StringVar(&f.host, "host", "", "Host to bind for HTTP (env: HOST, default: 127.0.0.1)")
	flags.IntVar(&f.port, "port", 0, "Port for HTTP (env: PORT, default: 8000)")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format: 'text' or 'json' (env: MCP_LOG_FORMAT)")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level: 'debug', 'info', 'warn', 'error' (env: MCP_LOG_LEVEL)")
	flags.BoolVar(&f.logCommands, "log-commands", false, "Print a line for every executed tool command (env: MCP_LOG_COMMANDS)")
	flags.StringVar(&f.authTokens, "auth-tokens", "", "Comma separated bearer tokens required by the HTTP endpoints (env: MCP_AUTH_TOKENS)")
	flags.BoolVar(&f.watchFS, "watch-fs", true, "Publish changes made outside the server to /events")
}

// buildConfig layers flags over environment, file and defaults.
func buildConfig(cmd *cobra.Command, f *flagValues, getenv func(string) string) (*config.Config, error) {
	flags := cmd.Flags()

	path := getenv("MCP_CONFIG")
	if flags.Changed("config") {
		path = f.configPath
	}
	cfg, err := config.Load(path, getenv)
	if err != nil {
		return nil, err
	}

	if flags.Changed("workdir") {
		cfg.WorkDir = f.workdir
	}
	if flags.Changed("transport") {
		cfg.Transport = f.transport
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-commands") {
		cfg.LogCommands = f.logCommands
	}
	if flags.Changed("auth-tokens") {
		cfg.AuthTokens = config.SplitTokens(f.authTokens)
	}
	if flags.Changed("watch-fs") {
		cfg.WatchFS = f.watchFS
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config, w io.Writer) {
	var logHandler slog.Handler
	if cfg.LogFormat == "json" {
		logHandler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level()})
	} else {
		logHandler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()})
	}
	slog.SetDefault(slog.New(logHandler))
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("Starting MCP shell server",
		"version", mcpsdk.Version,
		"transport", cfg.Transport,
		"workdir", cfg.WorkDir,
	)

	manager, err := project.NewManager(cfg.WorkDir, nil)
	if err != nil {
		slog.Error("Failed to initialize project manager", "error", err)
		return err
	}

	// stdout belongs to the protocol on the stream transports.
	var commandOut io.Writer = os.Stdout
	if cfg.Transport != config.TransportHTTP {
		commandOut = os.Stderr
	}

	hub := events.NewHub(eventRingCapacity)
	defer hub.Close()

	svcs := tool.NewServices(manager, tool.Options{
		Shell: shell.Options{
			Timeout:        cfg.ShellTimeout(),
			MaxOutputChars: cfg.Shell.MaxOutputChars,
		},
		ImageMaxBytes: cfg.Image.MaxBytes,
		ImageQuality:  cfg.Image.Quality,
		CommandLog:    cmdlog.New(cfg.LogCommands, commandOut),
		Events:        hub,
	})
	registry := tool.NewRegistry()
	tool.RegisterAll(registry, svcs)

	switch cfg.Transport {
	case config.TransportStdio:
		return mcpsdk.RunStdio(ctx, svcs)
	case config.TransportJSONL:
		sess := manager.NewSession()
		defer manager.CloseSession(sess.ID())
		return transport.RunLines(ctx, os.Stdin, os.Stdout, func(ctx context.Context, req *mcp.Request) *mcp.Response {
			return registry.Dispatch(ctx, sess, req)
		})
	default:
		return mcpsdk.RunHTTP(ctx, svcs, registry, hub, mcpsdk.HTTPOptions{
			Host:       cfg.Host,
			Port:       cfg.Port,
			AuthTokens: cfg.AuthTokens,
			WatchFS:    cfg.WatchFS,
		})
	}
}
