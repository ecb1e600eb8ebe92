package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the default data directory for llamatools.
// Windows: %LOCALAPPDATA%\llamatools
// Linux/Mac: ~/.local/share/llamatools
func DataDir() string {
	if dir := os.Getenv("LLAMATOOLS_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "llamatools")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "llamatools")
}

// ConfigPath returns the default location of config.yaml.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// LogPath is where diagnostic logs go while the TUI owns the terminal.
func LogPath() string {
	return filepath.Join(DataDir(), "llamatools.log")
}

// EnsureDirs creates the required directories if they don't exist.
func EnsureDirs() error {
	return os.MkdirAll(DataDir(), 0755)
}
