package project

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

var venvNames = []string{"venv", ".venv", "env", ".env", "virtualenv"}

// ActivateScript returns the activation script of the virtual environment
// at venvPath for the host OS.
func ActivateScript(venvPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvPath, "Scripts", "activate.bat")
	}
	return filepath.Join(venvPath, "bin", "activate")
}

// DetectVenv returns the first Python virtual environment found directly
// in dir, or "" if there is none.
func (m *Manager) DetectVenv(dir string) string {
	for _, name := range venvNames {
		venvPath := filepath.Join(dir, name)
		if !m.store.IsDir(venvPath) {
			continue
		}
		if ok, _ := afero.Exists(m.store.Fs(), ActivateScript(venvPath)); ok {
			return venvPath
		}
	}
	return ""
}
