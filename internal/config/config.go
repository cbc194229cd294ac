// File path: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable the generation core needs. Values resolve in
// three layers: built-in defaults, then an optional YAML file, then
// PLANFORGE_* environment variables.
type Config struct {
	Addr        string `yaml:"addr"`
	CatalogPath string `yaml:"catalog_path"`

	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	RateLimited bool   `yaml:"rate_limited"`

	MaxConcurrent int `yaml:"max_concurrent"`
	MaxRetries    int `yaml:"max_retries"`

	UseCache        bool `yaml:"use_cache"`
	CacheMaxSize    int  `yaml:"cache_max_size"`
	CacheTTLMinutes int  `yaml:"cache_ttl_minutes"`

	DocumentTimeout time.Duration `yaml:"document_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:            ":8084",
		CatalogPath:     "data/planforge.db",
		Provider:        "openai",
		Model:           "gpt-4o",
		MaxConcurrent:   3,
		MaxRetries:      3,
		UseCache:        true,
		CacheMaxSize:    50,
		CacheTTLMinutes: 60,
		DocumentTimeout: 90 * time.Second,
	}
}

// Load resolves the configuration. The path may be empty, in which case only
// defaults and environment variables apply; a missing file at an explicit
// path is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", trimmed, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", trimmed, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PLANFORGE_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANFORGE_CATALOG_PATH")); v != "" {
		c.CatalogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANFORGE_PROVIDER")); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PLANFORGE_MODEL")); v != "" {
		c.Model = v
	}
	if v, ok := envBool("PLANFORGE_RATE_LIMITED"); ok {
		c.RateLimited = v
	}
	if v, ok := envInt("PLANFORGE_MAX_CONCURRENT"); ok {
		c.MaxConcurrent = v
	}
	if v, ok := envInt("PLANFORGE_MAX_RETRIES"); ok {
		c.MaxRetries = v
	}
	if v, ok := envBool("PLANFORGE_USE_CACHE"); ok {
		c.UseCache = v
	}
	if v, ok := envInt("PLANFORGE_CACHE_MAX_SIZE"); ok {
		c.CacheMaxSize = v
	}
	if v, ok := envInt("PLANFORGE_CACHE_TTL_MINUTES"); ok {
		c.CacheTTLMinutes = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANFORGE_DOCUMENT_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			c.DocumentTimeout = dur
		}
	}
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Provider) == "" {
		errs = append(errs, errors.New("provider required"))
	}
	if c.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.CacheMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("cache_max_size must be positive, got %d", c.CacheMaxSize))
	}
	if c.CacheTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl_minutes must be positive, got %d", c.CacheTTLMinutes))
	}
	if c.DocumentTimeout <= 0 {
		errs = append(errs, errors.New("document_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// CacheTTL converts the minute-granularity setting into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

func envBool(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
