package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the llamatools configuration. Every field is a form default;
// CLI flags and TUI fields override it per invocation.
type Config struct {
	BinDir   string `yaml:"bin_dir"`   // directory with llama-cli, llama-server, llama-quantize, llama-perplexity
	LlamaDir string `yaml:"llama_dir"` // llama.cpp checkout holding the convert_*_to_gguf.py scripts
	Python   string `yaml:"python"`
	Terminal string `yaml:"terminal"` // empty = auto-detect

	// ProbeTimeout bounds each "<binary> --help" capability probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	Chat       ChatConfig       `yaml:"chat"`
	Server     ServerConfig     `yaml:"server"`
	Quantize   QuantizeConfig   `yaml:"quantize"`
	Perplexity PerplexityConfig `yaml:"perplexity"`
	Log        LogConfig        `yaml:"log"`
}

type ChatConfig struct {
	ChatTemplate string `yaml:"chat_template"`
	CtxSize      string `yaml:"ctx_size"`
	Threads      string `yaml:"threads"`
	Color        bool   `yaml:"color"`
}

type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	GPULayers     string        `yaml:"gpu_layers"`
	CtxSize       string        `yaml:"ctx_size"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

type QuantizeConfig struct {
	DefaultType string `yaml:"default_type"`
}

type PerplexityConfig struct {
	CtxSize   string `yaml:"ctx_size"`
	BatchSize string `yaml:"batch_size"`
	Chunks    string `yaml:"chunks"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Python:       "python3",
		ProbeTimeout: 10 * time.Second,
		Chat: ChatConfig{
			ChatTemplate: "chatml",
			CtxSize:      "2048",
			Threads:      "2",
		},
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          "8080",
			CtxSize:       "4096",
			HealthTimeout: 120 * time.Second,
		},
		Quantize: QuantizeConfig{
			DefaultType: "Q4_K_M",
		},
		Perplexity: PerplexityConfig{
			CtxSize:   "512",
			BatchSize: "2048",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML config at path on top of the defaults. A missing file
// is not an error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv("LLAMATOOLS_BIN_DIR"); dir != "" {
		c.BinDir = dir
	}
	if dir := os.Getenv("LLAMATOOLS_LLAMA_DIR"); dir != "" {
		c.LlamaDir = dir
	}
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
