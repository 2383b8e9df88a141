package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures all environment-driven settings in one place. It is
// loaded once in main and passed down; no other package reads the
// environment.
type Config struct {
	BotToken       string `env:"BOT_TOKEN,required"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"plantbot.db"`

	// Session manager pool settings.
	PoolMaxConns       int           `env:"POOL_MAX_CONNS" envDefault:"4"`
	PoolAcquireTimeout time.Duration `env:"POOL_ACQUIRE_TIMEOUT" envDefault:"5s"`

	// Calendar feed HTTP server. FeedBaseURL is the externally visible
	// base used when handing out feed links.
	FeedAddr    string `env:"FEED_ADDR" envDefault:":8080"`
	FeedBaseURL string `env:"FEED_BASE_URL" envDefault:"http://localhost:8080"`
	FeedSecret  string `env:"FEED_SECRET,required"`

	ReminderTick    time.Duration `env:"REMINDER_TICK" envDefault:"1m"`
	DefaultTimezone string        `env:"TIMEZONE_DEFAULT" envDefault:"Europe/Amsterdam"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PoolMaxConns < 1 {
		return Config{}, fmt.Errorf("POOL_MAX_CONNS must be at least 1, got %d", cfg.PoolMaxConns)
	}
	if len(cfg.FeedSecret) < 32 {
		return Config{}, fmt.Errorf("FEED_SECRET must be at least 32 characters")
	}
	return cfg, nil
}

// SlogLevel maps the configured log level to a slog.Level, defaulting to
// info for unknown values.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
