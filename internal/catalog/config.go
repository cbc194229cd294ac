// File path: internal/catalog/config.go
package catalog

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the catalog's SQLite connection pool.
type Config struct {
	Path         string        `json:"path"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	BusyTimeout  time.Duration `json:"-"`
}

// LoadConfig reads pool settings from the environment and applies defaults.
func LoadConfig() Config {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("PLANFORGE_CATALOG_PATH")); path != "" {
		cfg.Path = path
	}
	if raw := strings.TrimSpace(os.Getenv("PLANFORGE_CATALOG_MAX_OPEN_CONNS")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxOpenConns = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("PLANFORGE_CATALOG_MAX_IDLE_CONNS")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxIdleConns = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("PLANFORGE_CATALOG_BUSY_TIMEOUT")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.BusyTimeout = parsed
		}
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}
