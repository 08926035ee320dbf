// Package config loads the gamequest service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the gamequest API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	VectorDB  VectorDBConfig  `yaml:"vector_db"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig holds catalog store settings.
type CatalogConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// VectorDBConfig holds the embedding index settings.
type VectorDBConfig struct {
	// Path persists the index on disk; empty keeps it in memory.
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
}

// LLMConfig holds reasoning and rerank model settings.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SearchConfig holds pipeline settings.
type SearchConfig struct {
	DefaultTopK        int                `yaml:"default_top_k"`
	MaxTopK            int                `yaml:"max_top_k"`
	RerankWindow       int                `yaml:"rerank_window"`
	YearFloor          int                `yaml:"year_floor"`
	OverFetchFactor    int                `yaml:"over_fetch_factor"`
	SourceWeights      map[string]float64 `yaml:"source_weights"`
	RetrievalTimeoutMS int                `yaml:"retrieval_timeout_ms"`
	RerankTimeoutMS    int                `yaml:"rerank_timeout_ms"`
	ReasoningTimeoutMS int                `yaml:"reasoning_timeout_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file by environment name
// (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "postgres"
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 100
	}
	if c.Search.RerankWindow <= 0 {
		c.Search.RerankWindow = 50
	}
	if c.Search.YearFloor <= 0 {
		c.Search.YearFloor = 1950
	}
	if c.Search.OverFetchFactor <= 0 {
		c.Search.OverFetchFactor = 2
	}
	if c.Search.RetrievalTimeoutMS <= 0 {
		c.Search.RetrievalTimeoutMS = 5000
	}
	if c.Search.RerankTimeoutMS <= 0 {
		c.Search.RerankTimeoutMS = 10000
	}
	if c.Search.ReasoningTimeoutMS <= 0 {
		c.Search.ReasoningTimeoutMS = 20000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Catalog.Driver {
	case "postgres":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn is required for the postgres driver")
		}
	case "memory":
		// ok
	default:
		return fmt.Errorf("catalog.driver must be \"postgres\" or \"memory\", got %q", c.Catalog.Driver)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k %d exceeds search.max_top_k %d", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	total := 0.0
	for source, w := range c.Search.SourceWeights {
		if w < 0 {
			return fmt.Errorf("search.source_weights.%s must be non-negative, got %v", source, w)
		}
		total += w
	}
	if len(c.Search.SourceWeights) > 0 && total == 0 {
		return fmt.Errorf("search.source_weights must sum to a positive value")
	}
	return nil
}

// findConfigPath locates the config file under ./config/.
func findConfigPath(env string) string {
	return filepath.Join("config", fmt.Sprintf("%s.yaml", env))
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
