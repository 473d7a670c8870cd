// Package config provides configuration loading and structs for the QueryScout server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Schema    SchemaConfig    `yaml:"schema"`
	Context   ContextConfig   `yaml:"context"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds embedder settings. Provider is "openai" or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds language-model client settings. The API key is read from
// the OPENAI_API_KEY environment variable, never from the config file.
type LLMConfig struct {
	Model            string  `yaml:"model"`
	BaseURL          string  `yaml:"base_url"`
	Temperature      float32 `yaml:"temperature"`
	MaxRetries       int     `yaml:"max_retries"`
	RetryBaseDelayMS int     `yaml:"retry_base_delay_ms"`
}

// SearchConfig holds hybrid retrieval settings.
type SearchConfig struct {
	TopK                 int     `yaml:"top_k"`
	VectorWeight         float64 `yaml:"vector_weight"`
	KeywordWeight        float64 `yaml:"keyword_weight"`
	AutoAdjustWeights    bool    `yaml:"auto_adjust_weights"`
	LexicalVectorWeight  float64 `yaml:"lexical_vector_weight"`
	SemanticVectorWeight float64 `yaml:"semantic_vector_weight"`
	DedupThreshold       float64 `yaml:"dedup_threshold"`
	MaxDiverse           int     `yaml:"max_diverse"`
	VectorTimeoutSeconds int     `yaml:"vector_timeout_seconds"`
}

// VectorTimeout returns the wall-clock bound for the vector search leg.
func (s *SearchConfig) VectorTimeout() time.Duration {
	return time.Duration(s.VectorTimeoutSeconds) * time.Second
}

// SchemaConfig holds schema catalog settings.
type SchemaConfig struct {
	CatalogPath     string `yaml:"catalog_path"`
	MaxTables       int    `yaml:"max_tables"`
	UseLLMExtractor bool   `yaml:"use_llm_extractor"`
}

// ContextConfig holds prompt assembly settings.
type ContextConfig struct {
	MaxTokens         int     `yaml:"max_tokens"`
	RewriteEnabled    bool    `yaml:"rewrite_enabled"`
	RewriteConfidence float64 `yaml:"rewrite_confidence"`
	ValidateSQL       bool    `yaml:"validate_sql"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	if cfg.Schema.CatalogPath != "" {
		cfg.Schema.CatalogPath = expandPath(cfg.Schema.CatalogPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
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
