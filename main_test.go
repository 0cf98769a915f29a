package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the server once per test into a temporary directory.
func buildBinary(t *testing.T) string {
	t.Helper()
	binaryPath := filepath.Join(t.TempDir(), "mcp-shell-server")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}
	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Env = os.Environ()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return binaryPath
}

// startServer runs the binary on the HTTP transport and waits for /healthz.
func startServer(t *testing.T, bin, workdir, host, port string, extraArgs ...string) *exec.Cmd {
	t.Helper()
	args := append([]string{
		"--transport=http",
		"--host=" + host,
		"--port=" + port,
		"--workdir=" + workdir,
	}, extraArgs...)
	server := exec.Command(bin, args...)
	server.Stdout = os.Stdout
	server.Stderr = os.Stderr
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Process.Kill(); _ = server.Wait() })

	healthz := fmt.Sprintf("http://%s:%s/healthz", host, port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(healthz)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return server
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server on %s:%s did not become healthy", host, port)
	return nil
}

func TestJSONLTransport_ReplaceLines(t *testing.T) {
	bin := buildBinary(t)

	workdir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workdir, "demo"), 0o755))
	target := filepath.Join(workdir, "demo", "main.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\nb\nc\n"), 0o644))

	cmd := exec.Command(bin, "--transport=jsonl", "--workdir="+workdir)
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	reader := bufio.NewReader(stdout)
	call := func(id, tool string, params any) map[string]any {
		t.Helper()
		line, err := json.Marshal(map[string]any{"id": id, "tool": tool, "params": params})
		require.NoError(t, err)
		_, err = fmt.Fprintln(stdin, string(line))
		require.NoError(t, err)

		out, err := reader.ReadBytes('\n')
		require.NoError(t, err, "Failed to read response from stdout")
		var resp map[string]any
		require.NoError(t, json.Unmarshal(out, &resp))
		require.Equal(t, id, resp["id"])
		return resp
	}

	resp := call("1", "cd", map[string]any{"directory": "demo"})
	require.Nil(t, resp["error"], "Response should not contain an error")

	// the session keeps its directory between lines
	resp = call("2", "replace_lines", map[string]any{
		"file_path":   "main.txt",
		"start_line":  2,
		"end_line":    2,
		"new_content": "B\n",
	})
	require.Nil(t, resp["error"])
	result := resp["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "Successfully replaced at line 2-2", result["message"])

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n", string(content))

	resp = call("3", "read_file", map[string]any{"file_path": "main.txt", "start_line": 2, "end_line": 3, "show_line_numbers": true})
	result = resp["result"].(map[string]any)
	assert.Equal(t, "2: B\n3: c\n", result["content"])

	resp = call("4", "python_exec", map[string]any{})
	require.NotNil(t, resp["error"])
	assert.Equal(t, "NOT_FOUND", resp["error"].(map[string]any)["code"])
}

func TestBuildConfig_FlagsOverrideEnvironment(t *testing.T) {
	env := map[string]string{
		"WORKDIR":         "/from/env",
		"PORT":            "9000",
		"MCP_TRANSPORT":   "stdio",
		"MCP_AUTH_TOKENS": "envtok",
	}
	getenv := func(k string) string { return env[k] }

	cmd := &cobra.Command{}
	f := &flagValues{}
	bindFlags(cmd.Flags(), f)
	require.NoError(t, cmd.Flags().Parse([]string{"--port=9100", "--auth-tokens=a, b", "--watch-fs=false"}))

	cfg, err := buildConfig(cmd, f, getenv)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.WorkDir)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.AuthTokens)
	assert.False(t, cfg.WatchFS)
	assert.Equal(t, 120*time.Second, cfg.ShellTimeout())
}

func TestBuildConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("workdir = \"/srv/projects\"\nport = 8100\n\n[shell]\ntimeout_seconds = 30\n"), 0o644))

	getenv := func(k string) string {
		if k == "MCP_SHELL_TIMEOUT" {
			return "45"
		}
		return ""
	}
	cmd := &cobra.Command{}
	f := &flagValues{}
	bindFlags(cmd.Flags(), f)
	require.NoError(t, cmd.Flags().Parse([]string{"--config=" + path}))

	cfg, err := buildConfig(cmd, f, getenv)
	require.NoError(t, err)
	assert.Equal(t, "/srv/projects", cfg.WorkDir)
	assert.Equal(t, 8100, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.ShellTimeout())
}

func TestBuildConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"transport", []string{"--transport=grpc"}},
		{"port", []string{"--port=70000"}},
		{"log format", []string{"--log-format=xml"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			f := &flagValues{}
			bindFlags(cmd.Flags(), f)
			require.NoError(t, cmd.Flags().Parse(tc.args))

			_, err := buildConfig(cmd, f, func(string) string { return "" })
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration error")
		})
	}
}
