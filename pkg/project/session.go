package project

import "sync"

// Session is one client's view of the work directory: the directory that
// relative paths and shell commands start from.
type Session struct {
	id string

	mu  sync.RWMutex
	dir string
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Dir returns the active directory.
func (s *Session) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

func (s *Session) setDir(dir string) {
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
}
