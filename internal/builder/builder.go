// Package builder turns form state into argument vectors for the llama.cpp
// command-line tools.
package builder

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

// ConfigError is a user-correctable problem with form input. It is raised
// before any process is spawned.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Builder assembles Invocations. Path checks go through fs.
type Builder struct {
	fs     afero.Fs
	prober Prober
	python string
}

// New returns a Builder. python is the interpreter used for the conversion
// scripts ("python3" when empty).
func New(fs afero.Fs, prober Prober, python string) *Builder {
	if python == "" {
		python = "python3"
	}
	return &Builder{fs: fs, prober: prober, python: python}
}

// binary resolves name inside binDir and checks it exists.
func (b *Builder) binary(binDir, name string) (string, error) {
	if binDir == "" {
		return "", configErr("bin dir", "select the llama.cpp build/bin directory")
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	binPath := filepath.Join(binDir, name)
	info, err := b.fs.Stat(binPath)
	if err != nil || info.IsDir() {
		return "", configErr("bin dir", "%s not found at %s", name, binPath)
	}
	return binPath, nil
}

func (b *Builder) requireFile(field, path string) error {
	if path == "" {
		return configErr(field, "required")
	}
	info, err := b.fs.Stat(path)
	if err != nil {
		return configErr(field, "%s does not exist", path)
	}
	if info.IsDir() {
		return configErr(field, "%s is a directory, expected a file", path)
	}
	return nil
}

func (b *Builder) requireDir(field, path string) error {
	if path == "" {
		return configErr(field, "required")
	}
	info, err := b.fs.Stat(path)
	if err != nil {
		return configErr(field, "%s does not exist", path)
	}
	if !info.IsDir() {
		return configErr(field, "%s is not a directory", path)
	}
	return nil
}

func (b *Builder) exists(path string) bool {
	ok, _ := afero.Exists(b.fs, path)
	return ok
}
