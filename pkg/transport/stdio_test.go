package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"mcp-shell-server/pkg/mcp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, req *mcp.Request) *mcp.Response {
	if req.Tool != "echo" {
		return &mcp.Response{ID: req.ID, Error: mcp.NewError(mcp.CodeNotFound, "unknown tool", nil)}
	}
	return &mcp.Response{ID: req.ID, Result: req.Params}
}

func readResponses(t *testing.T, out *bytes.Buffer) []mcp.Response {
	var resps []mcp.Response
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp mcp.Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		resps = append(resps, resp)
	}
	return resps
}

func TestRunLines(t *testing.T) {
	in := strings.Join([]string{
		`{"id": 1, "tool": "echo", "params": {"x": 1}}`,
		``,
		`not json`,
		`{"id": "b", "tool": "missing"}`,
		`{"id": 3, "tool": "echo", "params": [1,2]}`,
	}, "\n")
	var out bytes.Buffer

	require.NoError(t, RunLines(context.Background(), strings.NewReader(in), &out, echoHandler))

	resps := readResponses(t, &out)
	require.Len(t, resps, 4)

	assert.Equal(t, "1", string(resps[0].ID))
	assert.JSONEq(t, `{"x": 1}`, string(resps[0].Result))

	require.NotNil(t, resps[1].Error)
	assert.Equal(t, mcp.CodeInvalidInput, resps[1].Error.Code)

	require.NotNil(t, resps[2].Error)
	assert.Equal(t, mcp.CodeNotFound, resps[2].Error.Code)
	assert.Equal(t, `"b"`, string(resps[2].ID))

	// the final line has no trailing newline
	assert.JSONEq(t, `[1,2]`, string(resps[3].Result))
}

func TestRunLinesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := RunLines(ctx, strings.NewReader(`{"tool": "echo"}`+"\n"), &out, echoHandler)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}
