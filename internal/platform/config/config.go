package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	minProductionSecretLength = 32
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	// TrustProxy makes client IPs come from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `env:"TRUST_PROXY" default:"false"`

	StoreBackend string `env:"STORE_BACKEND" default:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL"`
	SeedDemo     bool   `env:"SEED_DEMO" default:"false"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER" default:"plantpulse"`
	AuthTimeout   time.Duration `env:"AUTH_TIMEOUT" default:"5s"`
	ActorCacheTTL time.Duration `env:"ACTOR_CACHE_TTL" default:"5m"`

	ConnRateLimit  int           `env:"CONN_RATE_LIMIT" default:"5"`
	ConnRateWindow time.Duration `env:"CONN_RATE_WINDOW" default:"1m"`
	MsgRateLimit   int           `env:"MSG_RATE_LIMIT" default:"100"`
	MsgRateWindow  time.Duration `env:"MSG_RATE_WINDOW" default:"1m"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	APIRatePerSecond float64 `env:"API_RATE_PER_SECOND" default:"10"`
	APIRateBurst     int     `env:"API_RATE_BURST" default:"20"`

	PollSummaryInterval time.Duration `env:"POLL_SUMMARY_INTERVAL" default:"30s"`
	PollAlertsInterval  time.Duration `env:"POLL_ALERTS_INTERVAL" default:"60s"`
	PollStatsInterval   time.Duration `env:"POLL_STATS_INTERVAL" default:"45s"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.IsProduction() && len(cfg.JWTSecret) < minProductionSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLength)
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case StoreBackendMemory:
		if cfg.IsProduction() {
			return errors.New("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, cfg.StoreBackend)
	}

	if cfg.IsProduction() && cfg.DatabaseURL != "" {
		if err := requireSecureSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	positive := map[string]int{
		"CONN_RATE_LIMIT":           cfg.ConnRateLimit,
		"MSG_RATE_LIMIT":            cfg.MsgRateLimit,
		"MAX_WEBSOCKET_CONNECTIONS": cfg.MaxWebSocketConnections,
		"API_RATE_BURST":            cfg.APIRateBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	durations := map[string]time.Duration{
		"AUTH_TIMEOUT":          cfg.AuthTimeout,
		"CONN_RATE_WINDOW":      cfg.ConnRateWindow,
		"MSG_RATE_WINDOW":       cfg.MsgRateWindow,
		"POLL_SUMMARY_INTERVAL": cfg.PollSummaryInterval,
		"POLL_ALERTS_INTERVAL":  cfg.PollAlertsInterval,
		"POLL_STATS_INTERVAL":   cfg.PollStatsInterval,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

func requireSecureSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
