package storage

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"

	"mcp-shell-server/pkg/toolerr"
)

// FS reads and writes whole files on an afero file system.
type FS struct {
	fs afero.Fs
}

// New returns a store backed by fs. A nil fs means the host file system.
func New(fs afero.Fs) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FS{fs: fs}
}

// Fs exposes the underlying file system.
func (s *FS) Fs() afero.Fs {
	return s.fs
}

// Stat returns file info, classifying failures.
func (s *FS) Stat(path string) (os.FileInfo, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, toolerr.FromFS(err, path)
	}
	return info, nil
}

// IsDir reports whether path exists and is a directory.
func (s *FS) IsDir(path string) bool {
	ok, err := afero.IsDir(s.fs, path)
	return err == nil && ok
}

// ReadBytes returns the raw content of a regular file.
func (s *FS) ReadBytes(path string) ([]byte, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, toolerr.FromFS(err, path)
	}
	if info.IsDir() {
		return nil, toolerr.New(toolerr.CodeNotAFile, "path '%s' is not a file", path)
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, toolerr.FromFS(err, path)
	}
	return data, nil
}

// ReadText returns the content of a UTF-8 text file.
func (s *FS) ReadText(path string) (string, error) {
	data, err := s.ReadBytes(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", toolerr.New(toolerr.CodeEncoding, "cannot read file '%s' as UTF-8 text", path)
	}
	return string(data), nil
}

// WriteText replaces the content of path in a single step. The new content
// goes to a temporary sibling that is renamed over the target, so readers see
// either the old or the new file. An existing file keeps its mode, and a
// symlinked target is written through to the file it points at.
func (s *FS) WriteText(path, content string) error {
	path = s.RealPath(path)
	mode := os.FileMode(0o644)
	if info, err := s.fs.Stat(path); err == nil {
		if info.IsDir() {
			return toolerr.New(toolerr.CodeNotAFile, "path '%s' is not a file", path)
		}
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return toolerr.Wrap(toolerr.CodeIO, err, "failed to write file '%s'", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return toolerr.Wrap(toolerr.CodeIO, err, "failed to write file '%s'", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return toolerr.Wrap(toolerr.CodeIO, err, "failed to write file '%s'", path)
	}
	if err := s.fs.Chmod(tmpName, mode); err != nil {
		cleanup()
		return toolerr.Wrap(toolerr.CodeIO, err, "failed to write file '%s'", path)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return toolerr.Wrap(toolerr.CodeIO, err, "failed to write file '%s'", path)
	}
	return nil
}

// RealPath follows symlinks on the host file system. Paths that do not exist
// yet, and every path on other file systems, are returned unchanged.
func (s *FS) RealPath(path string) string {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return path
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}

// ListDirs returns the names of the directories directly under dir.
func (s *FS) ListDirs(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, toolerr.FromFS(err, dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
