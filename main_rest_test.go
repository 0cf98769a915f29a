package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createProjectOutREST struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CurrentDirectory string `json:"current_directory"`
}

// restPOST calls a tool through the REST mirror and returns the response with
// its body fully read.
func restPOST(t *testing.T, endpoint string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBytes
}

func TestHTTP_REST_CreateProject_NoAuth(t *testing.T) {
	bin := buildBinary(t)
	workdir := t.TempDir()

	host := "127.0.0.1"
	port := "18083"
	startServer(t, bin, workdir, host, port, "--watch-fs=false")

	endpoint := fmt.Sprintf("http://%s:%s/api/tools/create_project", host, port)
	session := map[string]string{"X-Session-Id": "rest-client"}
	resp, body := restPOST(t, endpoint, map[string]any{"name": "My REST Project"}, session)
	require.Equal(t, http.StatusOK, resp.StatusCode, "expected 200 from REST tool: %s", body)
	assert.Equal(t, "rest-client", resp.Header.Get("X-Session-Id"))

	var out createProjectOutREST
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success, out.Message)
	assert.Equal(t, "my-rest-project", filepath.Base(out.CurrentDirectory))

	_, err := os.Stat(filepath.Join(workdir, "my-rest-project", ".git"))
	require.NoError(t, err, "project should be a git repository")

	// the session id keeps the caller inside the new project
	activeEP := fmt.Sprintf("http://%s:%s/api/tools/active_project", host, port)
	_, body = restPOST(t, activeEP, map[string]any{}, session)
	var active struct {
		ActiveProject string `json:"active_project"`
	}
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Equal(t, "my-rest-project", active.ActiveProject)
}

func TestHTTP_REST_CreateProject_WithAuth(t *testing.T) {
	bin := buildBinary(t)
	workdir := t.TempDir()

	host := "127.0.0.1"
	port := "18084"
	token := "tokA123"
	startServer(t, bin, workdir, host, port, "--watch-fs=false", "--auth-tokens="+token)

	endpoint := fmt.Sprintf("http://%s:%s/api/tools/create_project", host, port)

	// Without a token
	resp, _ := restPOST(t, endpoint, map[string]any{"name": "Secured"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	// With a wrong token
	resp, _ = restPOST(t, endpoint, map[string]any{"name": "Secured"}, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err := os.Stat(filepath.Join(workdir, "secured"))
	require.True(t, os.IsNotExist(err), "rejected calls must not create anything")

	// With the configured token
	resp, body := restPOST(t, endpoint, map[string]any{"name": "Secured"}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out createProjectOutREST
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success, out.Message)

	// healthz stays open
	health, err := http.Get(fmt.Sprintf("http://%s:%s/healthz", host, port))
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestHTTP_REST_ReplaceLinesValidation(t *testing.T) {
	bin := buildBinary(t)
	workdir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workdir, "proj"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "proj", "f.txt"), []byte("x\ny\n"), 0o644))

	host := "127.0.0.1"
	port := "18085"
	startServer(t, bin, workdir, host, port, "--watch-fs=false")

	endpoint := fmt.Sprintf("http://%s:%s/api/tools/replace_lines", host, port)

	resp, body := restPOST(t, endpoint, map[string]any{"file_path": "proj/f.txt", "start_line": 5, "new_content": "z\n"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Success)
	assert.Equal(t, "RangeError", out.Error)

	resp, _ = restPOST(t, endpoint, map[string]any{"start_line": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = restPOST(t, fmt.Sprintf("http://%s:%s/api/tools/nope", host, port), map[string]any{}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	content, err := os.ReadFile(filepath.Join(workdir, "proj", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x\ny\n", string(content))
}
