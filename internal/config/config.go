// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. TCG_SERVER_PORT
const EnvPrefix = "TCG"

// Config captures every knob shared by the server and the import CLI.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	TCGdex   TCGdexConfig   `mapstructure:"tcgdex"`
	Import   ImportConfig   `mapstructure:"import"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	FrontendDistPath   string   `mapstructure:"frontend_dist_path"`
}

// DatabaseConfig selects the gorm dialect and connection.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

// TCGdexConfig configures the upstream API client.
type TCGdexConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MinInterval       time.Duration `mapstructure:"min_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	MaxRateLimitWaits int           `mapstructure:"max_rate_limit_waits"`
}

type ImportConfig struct {
	BatchSize int    `mapstructure:"batch_size"`
	Language  string `mapstructure:"language"`
}

// CatalogConfig tunes the read API.
type CatalogConfig struct {
	ImageBaseURL string `mapstructure:"image_base_url"`
	CacheSize    int    `mapstructure:"cache_size"`
}

// LoggingConfig toggles zap development features and the optional file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller supplied Viper, letting commands bind flags
// before the config is resolved.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.frontend_dist_path", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./tcg_tracker.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("tcgdex.base_url", "https://api.tcgdex.net/v2/en")
	v.SetDefault("tcgdex.timeout", "30s")
	v.SetDefault("tcgdex.min_interval", "100ms")
	v.SetDefault("tcgdex.max_attempts", 3)
	v.SetDefault("tcgdex.default_retry_after", "5s")
	v.SetDefault("tcgdex.max_rate_limit_waits", 10)
	v.SetDefault("import.batch_size", 50)
	v.SetDefault("import.language", "en")
	v.SetDefault("catalog.image_base_url", "")
	v.SetDefault("catalog.cache_size", 1000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set")
	}
	if c.TCGdex.BaseURL == "" {
		return fmt.Errorf("tcgdex.base_url must be set")
	}
	if c.TCGdex.Timeout <= 0 {
		return fmt.Errorf("tcgdex.timeout must be > 0")
	}
	if c.TCGdex.MinInterval < 0 {
		return fmt.Errorf("tcgdex.min_interval must be >= 0")
	}
	if c.TCGdex.MaxAttempts <= 0 {
		return fmt.Errorf("tcgdex.max_attempts must be > 0")
	}
	if c.TCGdex.MaxRateLimitWaits <= 0 {
		return fmt.Errorf("tcgdex.max_rate_limit_waits must be > 0")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be > 0")
	}
	if c.Import.Language == "" {
		return fmt.Errorf("import.language must be set")
	}
	if c.Catalog.CacheSize < 0 {
		return fmt.Errorf("catalog.cache_size must be >= 0")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
