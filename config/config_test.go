package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 100, cfg.Search.MaxTopK)
	assert.Equal(t, 50, cfg.Search.RerankWindow)
	assert.Equal(t, 1950, cfg.Search.YearFloor)
	assert.Equal(t, 2, cfg.Search.OverFetchFactor)
	assert.Equal(t, "postgres", cfg.Catalog.Driver)
	assert.Equal(t, 5000, cfg.Search.RetrievalTimeoutMS)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Config{
			HTTP:    HTTPConfig{Port: 8080},
			Catalog: CatalogConfig{Driver: "memory"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.HTTP.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		cfg := base()
		cfg.Catalog.Driver = "postgres"
		cfg.Catalog.DSN = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown catalog driver", func(t *testing.T) {
		cfg := base()
		cfg.Catalog.Driver = "sqlite"
		assert.Error(t, cfg.Validate())
	})

	t.Run("default top_k above max", func(t *testing.T) {
		cfg := base()
		cfg.Search.DefaultTopK = 200
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative source weight", func(t *testing.T) {
		cfg := base()
		cfg.Search.SourceWeights = map[string]float64{"semantic": -1}
		assert.Error(t, cfg.Validate())
	})

	t.Run("all-zero weights", func(t *testing.T) {
		cfg := base()
		cfg.Search.SourceWeights = map[string]float64{"semantic": 0}
		assert.Error(t, cfg.Validate())
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GQ_TEST_DSN", "postgres://example")

	data := expandEnvVars([]byte("dsn: ${GQ_TEST_DSN}\nkey: ${GQ_TEST_MISSING:-fallback}\n"))

	var out struct {
		DSN string `yaml:"dsn"`
		Key string `yaml:"key"`
	}
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, "postgres://example", out.DSN)
	assert.Equal(t, "fallback", out.Key)
}
