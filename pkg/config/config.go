// Package config loads the TOML runtime configuration. The store directory
// is always explicit; there is no environment-derived default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/nicktill/procmet/pkg/multiproc"
)

const defaultSweepInterval = time.Minute

// Duration wraps time.Duration for TOML parsing of strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the root runtime configuration.
type Config struct {
	// Dir is the store directory all components operate on. Required.
	Dir string `toml:"dir"`

	// LockFile is the coordination file path. Defaults to
	// <dir>/compact.lock.
	LockFile string `toml:"lock_file"`

	History HistoryConfig `toml:"history"`
	Sweep   SweepConfig   `toml:"sweep"`
}

// HistoryConfig controls the optional snapshot archive.
type HistoryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	MaxMemoryMB int64  `toml:"max_memory_mb"`
}

// SweepConfig controls the periodic dead-process sweep.
type SweepConfig struct {
	Interval Duration `toml:"interval"`
}

// Default returns the built-in defaults. Dir stays empty: it must come from
// the config file or a flag.
func Default() Config {
	return Config{
		Sweep: SweepConfig{Interval: Duration{defaultSweepInterval}},
	}
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks required fields and fills derived defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("dir is required")
	}
	if c.LockFile == "" {
		c.LockFile = filepath.Join(c.Dir, multiproc.DefaultLockFile)
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Sweep.Interval.Duration <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	return nil
}
