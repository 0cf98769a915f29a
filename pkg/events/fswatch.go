package events

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceWindow = 200 * time.Millisecond
	coalesceTick   = 100 * time.Millisecond
)

// SplitProjectPath maps an absolute path under root to its project (the
// first path element) and the path inside that project. Paths outside root
// or equal to it give empty strings.
func SplitProjectPath(root, abs string) (project, rel string) {
	relToRoot, err := filepath.Rel(root, abs)
	if err != nil || relToRoot == "." || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) {
		return "", ""
	}
	parts := strings.SplitN(relToRoot, string(filepath.Separator), 2)
	project = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return project, rel
}

// ignored skips git internals and the temporary siblings written by
// storage.FS.WriteText before they are renamed into place.
func ignored(rel string) bool {
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg == ".git" {
			return true
		}
	}
	base := filepath.Base(rel)
	return strings.HasPrefix(base, ".") && strings.Contains(base, ".tmp-")
}

type pending struct {
	project string
	path    string
	typ     string
	isDir   bool
}

// Watcher publishes external file changes under a root directory.
type Watcher struct {
	root string
	hub  *Hub
	fsw  *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]struct{}
	queue   map[pending]time.Time

	stop chan struct{}
	once sync.Once
}

// StartWatcher watches root and every directory below it, except .git
// directories, and publishes debounced events to hub.
func StartWatcher(root string, hub *Hub) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		hub:     hub,
		fsw:     fsw,
		watched: map[string]struct{}{},
		queue:   map[pending]time.Time{},
		stop:    make(chan struct{}),
	}
	w.addTree(root)

	go w.coalesce()
	go w.loop()
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		slog.Debug("fswatch: failed to add watcher", "dir", dir, "error", err)
		return
	}
	w.watched[dir] = struct{}{}
}

func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	delete(w.watched, dir)
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Debug("fswatch: watcher error", "error", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if ev.Has(fsnotify.Create) && isDir && filepath.Base(ev.Name) != ".git" {
		w.addTree(ev.Name)
	}

	project, rel := SplitProjectPath(w.root, ev.Name)
	if project == "" || project == ".git" || ignored(rel) {
		return
	}

	var typ string
	switch {
	case ev.Has(fsnotify.Create):
		typ = TypeFileCreated
		if isDir {
			typ = TypeDirCreated
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// the path is gone, so whether it was a directory is only known
		// from the watch list
		w.mu.Lock()
		_, wasDir := w.watched[ev.Name]
		w.mu.Unlock()
		typ = TypeFileDeleted
		if wasDir {
			typ = TypeDirDeleted
			isDir = true
			w.forget(ev.Name)
		}
	case ev.Has(fsnotify.Write):
		typ = TypeFileUpdated
	default:
		return
	}

	w.mu.Lock()
	w.queue[pending{project: project, path: rel, typ: typ, isDir: isDir}] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) coalesce() {
	ticker := time.NewTicker(coalesceTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			var ready []pending
			w.mu.Lock()
			for p, t := range w.queue {
				if now.Sub(t) >= debounceWindow {
					ready = append(ready, p)
					delete(w.queue, p)
				}
			}
			w.mu.Unlock()
			for _, p := range ready {
				w.hub.Publish(p.project, ProjectEvent{
					Type:  p.typ,
					Path:  filepath.ToSlash(p.path),
					IsDir: p.isDir,
					Actor: ActorFSWatch,
				})
			}
		case <-w.stop:
			return
		}
	}
}
