package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration for memtier.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// MemoryConfig tunes the tier lifecycle.
type MemoryConfig struct {
	Storage              string  `yaml:"storage"` // "json" or "sqlite"
	WarmPath             string  `yaml:"warm_path"`
	ColdDir              string  `yaml:"cold_dir"`
	MaxTokenLimit        int     `yaml:"max_token_limit"`
	HeatWeight           float64 `yaml:"heat_weight"`
	HeatThreshold        float64 `yaml:"heat_threshold"`
	MaxAgeHours          float64 `yaml:"max_age_hours"`
	DefaultTopK          int     `yaml:"default_top_k"`
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hash" or "api"
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	TimeoutMs int    `yaml:"timeout_ms"`
	BatchSize int    `yaml:"batch_size"`
}

// OptimizerConfig sets token budget thresholds for conversation payloads.
type OptimizerConfig struct {
	Strategy           string `yaml:"strategy"`
	TargetTokens       int    `yaml:"target_tokens"`
	MaxTokens          int    `yaml:"max_tokens"`
	MinMessagesKeep    int    `yaml:"min_messages_keep"`
	MaxToolResultChars int    `yaml:"max_tool_result_chars"`
	MaxImages          int    `yaml:"max_images"`
	CompressWhitespace bool   `yaml:"compress_whitespace"`
	RemoveDuplicates   bool   `yaml:"remove_duplicates"`
	SummarizeTools     bool   `yaml:"summarize_tool_results"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Memory: MemoryConfig{
			Storage:              "json",
			WarmPath:             filepath.Join(userHomeDir(), ".memtier", "warm_memory.json"),
			ColdDir:              filepath.Join(userHomeDir(), ".memtier", "cold_memory"),
			MaxTokenLimit:        12000,
			HeatWeight:           0.3,
			HeatThreshold:        0.1,
			MaxAgeHours:          24,
			DefaultTopK:          5,
			SweepIntervalSeconds: 300,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 128,
			TimeoutMs: 10000,
			BatchSize: 16,
		},
		Optimizer: OptimizerConfig{
			Strategy:           "adaptive",
			TargetTokens:       8000,
			MaxTokens:          12000,
			MinMessagesKeep:    4,
			MaxToolResultChars: 2000,
			MaxImages:          3,
			CompressWhitespace: true,
			RemoveDuplicates:   true,
			SummarizeTools:     true,
		},
	}
}

// Load loads config from disk; if path does not exist, default config is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	switch c.Memory.Storage {
	case "json", "sqlite":
	default:
		return fmt.Errorf("memory.storage must be json or sqlite, got %q", c.Memory.Storage)
	}
	if c.Memory.WarmPath == "" {
		return errors.New("memory.warm_path must not be empty")
	}
	if c.Memory.ColdDir == "" {
		return errors.New("memory.cold_dir must not be empty")
	}
	if c.Memory.MaxTokenLimit <= 0 {
		return errors.New("memory.max_token_limit must be > 0")
	}
	if c.Memory.HeatWeight < 0 || c.Memory.HeatWeight > 1 {
		return errors.New("memory.heat_weight must be in [0, 1]")
	}
	if c.Memory.HeatThreshold < 0 {
		return errors.New("memory.heat_threshold must be >= 0")
	}
	if c.Memory.MaxAgeHours <= 0 {
		return errors.New("memory.max_age_hours must be > 0")
	}
	if c.Memory.DefaultTopK <= 0 {
		return errors.New("memory.default_top_k must be > 0")
	}
	if c.Memory.SweepIntervalSeconds <= 0 {
		return errors.New("memory.sweep_interval_seconds must be > 0")
	}

	switch c.Embedding.Provider {
	case "hash", "api":
	default:
		return fmt.Errorf("embedding.provider must be hash or api, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension <= 0 {
		return errors.New("embedding.dimension must be > 0 for hash provider")
	}
	if c.Embedding.Provider == "api" {
		if strings.TrimSpace(c.Embedding.BaseURL) == "" {
			return errors.New("embedding.base_url is required for api provider")
		}
		if strings.TrimSpace(c.Embedding.Model) == "" {
			return errors.New("embedding.model is required for api provider")
		}
	}

	if c.Optimizer.TargetTokens <= 0 {
		return errors.New("optimizer.target_tokens must be > 0")
	}
	if c.Optimizer.MaxTokens < c.Optimizer.TargetTokens {
		return errors.New("optimizer.max_tokens must be >= optimizer.target_tokens")
	}
	if c.Optimizer.MinMessagesKeep < 0 {
		return errors.New("optimizer.min_messages_keep must be >= 0")
	}
	return nil
}

// EnsurePaths expands and creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.Memory.WarmPath = ExpandPath(c.Memory.WarmPath)
	c.Memory.ColdDir = ExpandPath(c.Memory.ColdDir)

	if parent := filepath.Dir(c.Memory.WarmPath); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create warm parent dir: %w", err)
		}
	}
	if err := os.MkdirAll(c.Memory.ColdDir, 0o755); err != nil {
		return fmt.Errorf("create cold dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
