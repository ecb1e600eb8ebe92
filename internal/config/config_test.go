package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("LLAMATOOLS_BIN_DIR", "")
	t.Setenv("LLAMATOOLS_LLAMA_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("LLAMATOOLS_BIN_DIR", "")
	t.Setenv("LLAMATOOLS_LLAMA_DIR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `bin_dir: /opt/llama/build/bin
probe_timeout: 3s
chat:
  ctx_size: "8192"
server:
  port: "9090"
  health_timeout: 30s
quantize:
  default_type: Q8_0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/llama/build/bin", cfg.BinDir)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "8192", cfg.Chat.CtxSize)
	assert.Equal(t, "2", cfg.Chat.Threads, "unset keys keep their defaults")
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.HealthTimeout)
	assert.Equal(t, "Q8_0", cfg.Quantize.DefaultType)
	assert.Equal(t, "python3", cfg.Python)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bin_dir: /from/file\n"), 0644))

	t.Setenv("LLAMATOOLS_BIN_DIR", "/from/env")
	t.Setenv("LLAMATOOLS_LLAMA_DIR", "/src/llama.cpp")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.BinDir)
	assert.Equal(t, "/src/llama.cpp", cfg.LlamaDir)
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("LLAMATOOLS_BIN_DIR", "")
	t.Setenv("LLAMATOOLS_LLAMA_DIR", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.BinDir = "/opt/llama"
	cfg.Server.HealthTimeout = 45 * time.Second

	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDataDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LLAMATOOLS_DATA_DIR", dir)

	assert.Equal(t, dir, DataDir())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), ConfigPath())
	assert.Equal(t, filepath.Join(dir, "llamatools.log"), LogPath())
	require.NoError(t, EnsureDirs())
}
