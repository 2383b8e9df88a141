package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FEED_SECRET", strings.Repeat("s", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "plantbot.db" {
		t.Errorf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.PoolMaxConns != 4 {
		t.Errorf("expected default pool size 4, got %d", cfg.PoolMaxConns)
	}
	if cfg.PoolAcquireTimeout != 5*time.Second {
		t.Errorf("expected default acquire timeout 5s, got %v", cfg.PoolAcquireTimeout)
	}
	if cfg.DefaultTimezone != "Europe/Amsterdam" {
		t.Errorf("expected default timezone, got %q", cfg.DefaultTimezone)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("FEED_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required variables")
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FEED_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short FEED_SECRET")
	}
}

func TestLoadRejectsZeroPool(t *testing.T) {
	setRequired(t)
	t.Setenv("POOL_MAX_CONNS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero pool size")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := (Config{LogLevel: tc.in}).SlogLevel(); got != tc.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
