package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected missing file tolerated, got %v", err)
	}
	if cfg.TickIntervalSeconds != 60 {
		t.Errorf("Expected default tick interval 60, got %d", cfg.TickIntervalSeconds)
	}
	if cfg.MaxConcurrentRandoms != 3 {
		t.Errorf("Expected default random cap 3, got %d", cfg.MaxConcurrentRandoms)
	}
	if cfg.ListenAddr != ":8777" {
		t.Errorf("Expected default listen addr :8777, got %q", cfg.ListenAddr)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
tick_interval_seconds: 120
default_channel: sala-principal
eligible_channels: [patio, biblioteca]
database_path: /tmp/world.db
weekly_theme: alquimia
weekly_theme_multiplier: 1.5
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickIntervalSeconds != 120 || cfg.TickInterval() != 2*time.Minute {
		t.Errorf("Expected tick interval 120s, got %d", cfg.TickIntervalSeconds)
	}
	if cfg.DefaultChannel != "sala-principal" {
		t.Errorf("Expected default channel parsed, got %q", cfg.DefaultChannel)
	}
	if len(cfg.EligibleChannels) != 2 || cfg.EligibleChannels[1] != "biblioteca" {
		t.Errorf("Expected eligible channels parsed, got %v", cfg.EligibleChannels)
	}
	if cfg.WeeklyTheme != "alquimia" || cfg.WeeklyThemeMultiplier != 1.5 {
		t.Errorf("Expected theme settings parsed, got %q x%v", cfg.WeeklyTheme, cfg.WeeklyThemeMultiplier)
	}
	// Unset fields keep their defaults.
	if cfg.SnapshotEveryTicks != 10 {
		t.Errorf("Expected default snapshot cadence kept, got %d", cfg.SnapshotEveryTicks)
	}
}

func TestLoadClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "tick_interval_seconds: -5\nmax_concurrent_randoms: 0\nweekly_theme_multiplier: -1\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickIntervalSeconds != 60 || cfg.MaxConcurrentRandoms != 3 || cfg.WeeklyThemeMultiplier != 1.0 {
		t.Errorf("Expected bad values clamped to defaults, got %+v", cfg)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("TOGUWAKA_CONFIG", "/etc/toguwaka/config.yaml")
	if p := PathFromEnv(); p != "/etc/toguwaka/config.yaml" {
		t.Errorf("Expected env path honored, got %q", p)
	}
	t.Setenv("TOGUWAKA_CONFIG", "")
	if p := PathFromEnv(); p != "config.yaml" {
		t.Errorf("Expected fallback config.yaml, got %q", p)
	}
}
