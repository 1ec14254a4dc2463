// Package config loads the engine configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable parameters for the world-event engine.
type Config struct {
	// TickIntervalSeconds drives the scheduler heartbeat. Gates use a
	// tolerance window, so anything between 60 and 300 is safe.
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`

	// DefaultChannel is the preferred announce channel ref. When empty,
	// random events pick from EligibleChannels.
	DefaultChannel   string   `yaml:"default_channel"`
	EligibleChannels []string `yaml:"eligible_channels"`

	DatabasePath string `yaml:"database_path"`

	SnapshotPath         string `yaml:"snapshot_path"`
	SnapshotEveryTicks   int    `yaml:"snapshot_every_ticks"`
	MaxConcurrentRandoms int    `yaml:"max_concurrent_randoms"`

	ListenAddr string `yaml:"listen_addr"`

	// WeeklyTheme biases the daily subject pick when set (70% probability).
	WeeklyTheme           string  `yaml:"weekly_theme"`
	WeeklyThemeMultiplier float64 `yaml:"weekly_theme_multiplier"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		TickIntervalSeconds:   60,
		DatabasePath:          "data/world.db",
		SnapshotPath:          "data/registry.snap",
		SnapshotEveryTicks:    10,
		MaxConcurrentRandoms:  3,
		ListenAddr:            ":8777",
		WeeklyThemeMultiplier: 1.0,
	}
}

// Load reads the YAML config at path, falling back to defaults for
// unset fields. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.TickIntervalSeconds <= 0 {
		cfg.TickIntervalSeconds = 60
	}
	if cfg.MaxConcurrentRandoms <= 0 {
		cfg.MaxConcurrentRandoms = 3
	}
	if cfg.WeeklyThemeMultiplier <= 0 {
		cfg.WeeklyThemeMultiplier = 1.0
	}

	return cfg, nil
}

// PathFromEnv resolves the config path from TOGUWAKA_CONFIG, with a
// sensible default next to the working directory.
func PathFromEnv() string {
	if p := os.Getenv("TOGUWAKA_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// TickInterval returns the scheduler heartbeat as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}
