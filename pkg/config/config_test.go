package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, 120*time.Second, cfg.ShellTimeout())
	assert.Equal(t, 1000000, cfg.Image.MaxBytes)
	assert.False(t, cfg.LogCommands)
	assert.NotEmpty(t, cfg.WorkDir)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
workdir = "/srv/projects"
transport = "stdio"
port = 9000
auth_tokens = ["a", "b"]
mystery = true

[shell]
timeout_seconds = 30

[image]
quality = 80
`), 0o644))

	cfg, err := Load(path, envMap(map[string]string{
		"PORT":             "9100",
		"MCP_LOG_COMMANDS": "yes",
		"MCP_AUTH_TOKENS":  " x , ,y ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/srv/projects", cfg.WorkDir)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.LogCommands)
	assert.Equal(t, []string{"x", "y"}, cfg.AuthTokens)
	assert.Equal(t, 30*time.Second, cfg.ShellTimeout())
	assert.Equal(t, 80, cfg.Image.Quality)
	assert.Equal(t, 1000000, cfg.Image.MaxBytes, "unset keys keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), envMap(nil))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("port = "), 0o644))
	_, err = Load(bad, envMap(nil))
	assert.Error(t, err)

	_, err = Load("", envMap(map[string]string{"PORT": "eighty"}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty workdir", func(c *Config) { c.WorkDir = "" }, "--workdir is required"},
		{"unknown transport", func(c *Config) { c.Transport = "grpc" }, "--transport must be"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "--port must be"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "--log-format must be"},
		{"zero timeout", func(c *Config) { c.Shell.TimeoutSeconds = 0 }, "shell timeout"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	cfg := Default()
	cfg.Transport = TransportStdio
	cfg.Port = 0
	assert.NoError(t, cfg.Validate(), "port is only checked for http")
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "DEBUG"
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	cfg.LogLevel = "chatty"
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
