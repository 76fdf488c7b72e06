// Package config loads runtime configuration from the environment.
package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr        string        `envconfig:"ADDR" default:":8080"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// PGDSN empty selects the in-memory ledger store (dev/test only).
	PGDSN string `envconfig:"PG_DSN"`
	// RedisAddr empty disables the report cache.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	ReportCacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`

	OrdersAPIURL string `envconfig:"ORDERS_API_URL"`

	MetaAPIURL    string `envconfig:"META_API_URL" default:"https://graph.facebook.com/v19.0"`
	MetaAppID     string `envconfig:"META_APP_ID"`
	MetaAppSecret string `envconfig:"META_APP_SECRET"`

	GoogleAPIURL         string `envconfig:"GOOGLE_ADS_API_URL" default:"https://googleads.googleapis.com/v17"`
	GoogleTokenURL       string `envconfig:"GOOGLE_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
	GoogleClientID       string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleDeveloperToken string `envconfig:"GOOGLE_DEVELOPER_TOKEN"`

	AutoSync     bool          `envconfig:"AUTO_SYNC" default:"true"`
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"15m"`
	// SyncThrottle skips integrations already synced within the window.
	SyncThrottle time.Duration `envconfig:"SYNC_THROTTLE" default:"1h"`
	SyncDays     int           `envconfig:"SYNC_DAYS" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto slog's levels.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
