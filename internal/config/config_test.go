package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "https://api.tcgdex.net/v2/en", cfg.TCGdex.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.TCGdex.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.TCGdex.MinInterval)
	assert.Equal(t, 3, cfg.TCGdex.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.TCGdex.DefaultRetryAfter)
	assert.Equal(t, 10, cfg.TCGdex.MaxRateLimitWaits)
	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.Equal(t, "en", cfg.Import.Language)
	assert.Equal(t, 1000, cfg.Catalog.CacheSize)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://tcg@localhost/tcg
tcgdex:
  min_interval: 250ms
import:
  batch_size: 10
`), 0o600))

	t.Setenv("TCG_IMPORT_BATCH_SIZE", "25")
	t.Setenv("TCG_CATALOG_IMAGE_BASE_URL", "https://cdn.example.com/cards")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.TCGdex.MinInterval)
	assert.Equal(t, 25, cfg.Import.BatchSize, "environment wins over file")
	assert.Equal(t, "https://cdn.example.com/cards", cfg.Catalog.ImageBaseURL)
}

func TestLoadWithFlagOverride(t *testing.T) {
	v := viper.New()
	v.Set("import.batch_size", 7)

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Import.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"dsn", func(c *Config) { c.Database.DSN = "" }},
		{"base url", func(c *Config) { c.TCGdex.BaseURL = "" }},
		{"timeout", func(c *Config) { c.TCGdex.Timeout = 0 }},
		{"interval", func(c *Config) { c.TCGdex.MinInterval = -time.Second }},
		{"attempts", func(c *Config) { c.TCGdex.MaxAttempts = 0 }},
		{"rate limit waits", func(c *Config) { c.TCGdex.MaxRateLimitWaits = 0 }},
		{"batch size", func(c *Config) { c.Import.BatchSize = 0 }},
		{"language", func(c *Config) { c.Import.Language = "" }},
		{"cache size", func(c *Config) { c.Catalog.CacheSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, valid.Validate())
}
