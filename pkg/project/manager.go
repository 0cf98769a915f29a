package project

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mcp-shell-server/pkg/storage"
	"mcp-shell-server/pkg/toolerr"
)

// NoActiveProject is reported when a session sits at the root.
const NoActiveProject = "No active project"

// Manager owns the work directory and the sessions navigating it.
type Manager struct {
	rootPath string
	realRoot string // rootPath with symlinks resolved
	store    *storage.FS

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a project manager rooted at rootPath.
// It ensures the root directory exists.
func NewManager(rootPath string, store *storage.FS) (*Manager, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("work directory cannot be empty")
	}
	if store == nil {
		store = storage.New(nil)
	}
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for work directory: %w", err)
	}
	if err := store.Fs().MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Manager{
		rootPath: filepath.Clean(absRoot),
		realRoot: store.RealPath(filepath.Clean(absRoot)),
		store:    store,
		sessions: make(map[string]*Session),
	}, nil
}

// RootPath returns the absolute work directory.
func (m *Manager) RootPath() string {
	return m.rootPath
}

// Store returns the storage the manager reads through.
func (m *Manager) Store() *storage.FS {
	return m.store
}

// NewSession starts a session at the root with a fresh id.
func (m *Manager) NewSession() *Session {
	return m.Session(uuid.NewString())
}

// Session returns the session with id, creating it at the root if needed.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{id: id, dir: m.rootPath}
	m.sessions[id] = s
	slog.Debug("Opened project session", "session", id)
	return s
}

// CloseSession forgets a session.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SessionCount returns the number of open sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Contains reports whether abs lies inside the work directory.
func (m *Manager) Contains(abs string) bool {
	return within(m.rootPath, abs)
}

func within(root, abs string) bool {
	abs = filepath.Clean(abs)
	return abs == root || strings.HasPrefix(abs, root+string(filepath.Separator))
}

// Resolve turns a client path into an absolute path inside the work
// directory. Relative paths start from the session's active directory.
func (m *Manager) Resolve(sess *Session, p string) (string, error) {
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(sess.Dir(), p)
	}
	if !m.Contains(abs) {
		return "", toolerr.New(toolerr.CodeUnauthorizedPath, "path '%s' is outside %s", p, m.rootPath)
	}
	// a symlink inside the root may still point out of it
	if real := m.store.RealPath(abs); real != abs && !within(m.realRoot, real) {
		return "", toolerr.New(toolerr.CodeUnauthorizedPath, "path '%s' links outside %s", p, m.rootPath)
	}
	return abs, nil
}

// ListProjects returns the directories directly under the root.
func (m *Manager) ListProjects() ([]string, error) {
	names, err := m.store.ListDirs(m.rootPath)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// HasProject reports whether name is a directory directly under the root.
func (m *Manager) HasProject(name string) bool {
	return validDirName(name) && m.store.IsDir(filepath.Join(m.rootPath, name))
}

// ActiveProject names the session's current directory.
func (m *Manager) ActiveProject(sess *Session) string {
	dir := sess.Dir()
	if dir == m.rootPath {
		return NoActiveProject
	}
	return filepath.Base(dir)
}

// Cd moves the session to dir and returns the new active directory.
// On failure the session does not move.
func (m *Manager) Cd(sess *Session, dir string) (string, error) {
	var target string
	if filepath.IsAbs(dir) {
		target = filepath.Clean(dir)
		if !m.Contains(target) {
			return "", toolerr.New(toolerr.CodeUnauthorizedPath,
				"Please provide either a relative path or a path in %s", m.rootPath)
		}
	} else {
		target = filepath.Join(sess.Dir(), dir)
		if !m.Contains(target) {
			return "", toolerr.New(toolerr.CodeUnauthorizedPath,
				"The resulting path would be outside %s", m.rootPath)
		}
	}

	if !m.store.IsDir(target) {
		return "", toolerr.New(toolerr.CodeNotFound, "Directory '%s' does not exist", dir)
	}
	sess.setDir(target)
	return target, nil
}
