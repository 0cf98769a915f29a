// Package tool implements the server's tools once, for every surface that
// exposes them: the MCP server, the REST mirror and the JSON-lines
// transport.
package tool

import (
	"context"

	"mcp-shell-server/pkg/cmdlog"
	"mcp-shell-server/pkg/events"
	"mcp-shell-server/pkg/lineedit"
	"mcp-shell-server/pkg/media"
	"mcp-shell-server/pkg/project"
	"mcp-shell-server/pkg/shell"
	"mcp-shell-server/pkg/storage"
)

// Publisher receives project events. *events.Hub implements it.
type Publisher interface {
	Publish(project string, evt events.ProjectEvent)
}

// Options configure NewServices.
type Options struct {
	Shell         shell.Options
	ImageMaxBytes int
	ImageQuality  int
	CommandLog    *cmdlog.Logger
	Events        Publisher
}

// Services bundles the collaborators the tools work with.
type Services struct {
	Projects *project.Manager
	Store    *storage.FS
	Editor   *lineedit.Editor
	Shell    *shell.Runner
	Images   *media.Loader
	Log      *cmdlog.Logger
	Events   Publisher
}

// NewServices wires the tool collaborators around a project manager.
func NewServices(projects *project.Manager, opts Options) *Services {
	store := projects.Store()
	if opts.Shell.Fs == nil {
		opts.Shell.Fs = store.Fs()
	}
	return &Services{
		Projects: projects,
		Store:    store,
		Editor:   lineedit.NewEditor(store),
		Shell:    shell.NewRunner(opts.Shell),
		Images:   media.NewLoader(store, opts.ImageMaxBytes, opts.ImageQuality),
		Log:      opts.CommandLog,
		Events:   opts.Events,
	}
}

type actorKey struct{}

// WithActor records which surface a call came through, for event
// attribution.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok {
		return a
	}
	return events.ActorMCP
}

// publish attributes evt to the project containing abs, with abs as the
// event path.
func (s *Services) publish(ctx context.Context, sess *project.Session, abs string, evt events.ProjectEvent) {
	s.send(ctx, sess, abs, evt, true)
}

// publishProject attributes a project-wide evt to the project containing abs.
func (s *Services) publishProject(ctx context.Context, sess *project.Session, abs string, evt events.ProjectEvent) {
	s.send(ctx, sess, abs, evt, false)
}

func (s *Services) send(ctx context.Context, sess *project.Session, abs string, evt events.ProjectEvent, withPath bool) {
	if s.Events == nil {
		return
	}
	name, rel := events.SplitProjectPath(s.Projects.RootPath(), abs)
	if name == "" {
		return
	}
	if withPath {
		evt.Path = rel
	}
	evt.Actor = actorFrom(ctx)
	evt.Session = sess.ID()
	s.Events.Publish(name, evt)
}
