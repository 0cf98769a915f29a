package mcpsdk

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolRejectsInvalidNames(t *testing.T) {
	assert.NotPanics(t, func() { newTool("replace_lines", "") })
	assert.Panics(t, func() { newTool("fs/read", "") })
	assert.Panics(t, func() { newTool("", "") })
}

func TestToolAnnotations(t *testing.T) {
	d := destructive(newTool("git_commit", ""))
	require.NotNil(t, d.Annotations)
	require.NotNil(t, d.Annotations.DestructiveHint)
	assert.True(t, *d.Annotations.DestructiveHint)

	r := readOnly(newTool("read_file", ""))
	require.NotNil(t, r.Annotations)
	assert.True(t, r.Annotations.ReadOnlyHint)
}

func TestBuildServer(t *testing.T) {
	manager, err := project.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	svcs := tool.NewServices(manager, tool.Options{})

	// schema inference for every tool happens here
	assert.NotPanics(t, func() { buildServer(svcs) })
}

func TestProjectSessionWithoutID(t *testing.T) {
	manager, err := project.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	svcs := tool.NewServices(manager, tool.Options{})

	sess := projectSession(svcs, nil)
	assert.Equal(t, stdioSessionID, sess.ID())
	assert.Same(t, sess, projectSession(svcs, nil))
	assert.Equal(t, manager.RootPath(), sess.Dir())
}

func TestNoArgsSchema(t *testing.T) {
	data, err := json.Marshal(noArgsSchema())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "object", got["type"])
	assert.Contains(t, got, "additionalProperties")

	// each tool gets its own copy
	assert.NotSame(t, noArgsSchema(), noArgsSchema())
}

func TestProjectSessionReleasedOnDisconnect(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "alpha"), 0o755))
	manager, err := project.NewManager(root, nil)
	require.NoError(t, err)
	svcs := tool.NewServices(manager, tool.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	_, err = buildServer(svcs).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "cd",
		Arguments: map[string]any{"directory": "alpha"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 1, manager.SessionCount())

	require.NoError(t, cs.Close())
	assert.Eventually(t, func() bool { return manager.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
