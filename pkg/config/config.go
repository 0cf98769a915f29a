// Package config assembles the server configuration from defaults, an
// optional TOML file and environment variables. Command-line flags are
// layered on top by the caller.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mcp-shell-server/pkg/cmdlog"
)

// Config holds the application configuration.
type Config struct {
	WorkDir     string   `toml:"workdir"`
	Transport   string   `toml:"transport"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	LogFormat   string   `toml:"log_format"`
	LogLevel    string   `toml:"log_level"`
	LogCommands bool     `toml:"log_commands"`
	AuthTokens  []string `toml:"auth_tokens"`

	Shell ShellConfig `toml:"shell"`
	Image ImageConfig `toml:"image"`
	// WatchFS enables the project change watcher on the HTTP transport.
	WatchFS bool `toml:"watch_fs"`
}

// ShellConfig tunes command execution.
type ShellConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxOutputChars int `toml:"max_output_chars"`
}

// ImageConfig tunes image recompression.
type ImageConfig struct {
	MaxBytes int `toml:"max_bytes"`
	Quality  int `toml:"quality"`
}

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportJSONL = "jsonl"
)

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		WorkDir:   home,
		Transport: TransportHTTP,
		Host:      "127.0.0.1",
		Port:      8000,
		LogFormat: "text",
		LogLevel:  "info",
		Shell: ShellConfig{
			TimeoutSeconds: 120,
			MaxOutputChars: 100000,
		},
		Image: ImageConfig{
			MaxBytes: 1000000,
			Quality:  60,
		},
		WatchFS: true,
	}
}

// Load layers the TOML file at path (if any) and the environment over the
// defaults. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("error checking config file '%s': %w", path, err)
	}
	metadata, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		slog.Warn("Unrecognized keys in config file", "path", path, "keys", undecoded)
	}
	slog.Debug("Loaded configuration file", "path", path)
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("WORKDIR"); v != "" {
		c.WorkDir = v
	}
	if v := getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := getenv("MCP_TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := getenv("MCP_LOG_COMMANDS"); v != "" {
		c.LogCommands = cmdlog.ParseEnabled(v)
	}
	if v := getenv("MCP_AUTH_TOKENS"); v != "" {
		c.AuthTokens = SplitTokens(v)
	}
	if v := getenv("MCP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("MCP_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := getenv("MCP_SHELL_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MCP_SHELL_TIMEOUT %q: %w", v, err)
		}
		c.Shell.TimeoutSeconds = secs
	}
	return nil
}

// Validate checks the combined configuration.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("--workdir is required")
	}
	switch c.Transport {
	case TransportHTTP, TransportStdio, TransportJSONL:
	default:
		return fmt.Errorf("--transport must be 'http', 'stdio' or 'jsonl'")
	}
	if c.Transport == TransportHTTP && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("--port must be between 1 and 65535")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("--log-format must be 'text' or 'json'")
	}
	if c.Shell.TimeoutSeconds <= 0 {
		return fmt.Errorf("shell timeout must be positive")
	}
	return nil
}

// ShellTimeout returns the configured command timeout.
func (c *Config) ShellTimeout() time.Duration {
	return time.Duration(c.Shell.TimeoutSeconds) * time.Second
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	logLevelMap := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	level, exists := logLevelMap[strings.ToLower(c.LogLevel)]
	if !exists {
		return slog.LevelInfo
	}
	return level
}

// SplitTokens parses a comma separated token list, dropping blanks.
func SplitTokens(v string) []string {
	var tokens []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
