// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mbellhart/crawlcache/internal/cache"
	"github.com/mbellhart/crawlcache/internal/engine"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Engine  engine.Config `mapstructure:"engine"`
	Cache   cache.Config  `mapstructure:"cache"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FetchConfig governs single-URL executions.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BatchConfig governs aggregate executions.
type BatchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxURLs        int `mapstructure:"max_urls"`
}

// MetricsConfig controls the optional metrics/health listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. path may be empty, in which
// case only defaults and CRAWLCACHE_* environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLCACHE")
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
	v.SetDefault("engine.command", "python3")
	v.SetDefault("engine.script", "scripts/scrape.py")
	v.SetDefault("cache.base_dir", defaultCacheDir())
	v.SetDefault("cache.token_budget", cache.DefaultTokenBudget)
	v.SetDefault("cache.max_entries", cache.DefaultMaxEntries)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("batch.timeout_seconds", 600)
	v.SetDefault("batch.max_urls", 50)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", false)
}

// defaultCacheDir resolves the platform cache root once at startup.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "crawlcache")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return fmt.Errorf("engine.command must be set")
	}
	if strings.TrimSpace(c.Cache.BaseDir) == "" {
		return fmt.Errorf("cache.base_dir must be set")
	}
	if c.Cache.TokenBudget <= 0 {
		return fmt.Errorf("cache.token_budget must be > 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Batch.TimeoutSeconds <= 0 {
		return fmt.Errorf("batch.timeout_seconds must be > 0")
	}
	if c.Batch.MaxURLs <= 0 {
		return fmt.Errorf("batch.max_urls must be > 0")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BatchTimeout converts the batch timeout into a duration.
func (c Config) BatchTimeout() time.Duration {
	return time.Duration(c.Batch.TimeoutSeconds) * time.Second
}
