// Package config provides configuration loading and structs for arxiv-agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agent.
type Config struct {
	Debug     bool            `yaml:"debug"`
	DataDir   string          `yaml:"data_dir"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Feeds     FeedConfig      `yaml:"feeds"`
	Rank      RankConfig      `yaml:"rank"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "onnx", "ollama", or "mock".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	OllamaURL  string `yaml:"ollama_url"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// FeedConfig holds arXiv feed settings.
type FeedConfig struct {
	// Categories are arXiv category codes (e.g. "cs.LG") monitored by fetch.
	Categories []string `yaml:"categories"`
	// TimeoutSeconds bounds each feed request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// RankConfig holds relevance ranking defaults.
type RankConfig struct {
	Threshold  float64 `yaml:"threshold"`
	MaxResults int     `yaml:"max_results"`
}

// AnchorsPath returns the path of the persisted anchor collection.
func (c *Config) AnchorsPath() string {
	return filepath.Join(c.DataDir, "anchors.json")
}

// ArchivePath returns the path of the paper archive database.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, "papers.db")
}

// KeywordIndexPath returns the path of the keyword index directory.
func (c *Config) KeywordIndexPath() string {
	return filepath.Join(c.DataDir, "keyword.bleve")
}

// Load reads and parses the config file at path, applies defaults, and
// expands relative paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.DataDir = expandPath(cfg.DataDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Default returns a config with every default applied and DataDir expanded.
// Used when no config file exists; a fresh install needs no file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.DataDir = expandPath(cfg.DataDir, ".")
	return &cfg
}

// Save writes the config to path. Used for persisting settings updates.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
