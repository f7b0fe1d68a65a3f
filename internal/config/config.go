package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration. DATABASE_URL is the only hard
// requirement; Redis and the history cache are optional.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// Webcast bridge that resolves usernames to rooms and serves the
	// live event feed.
	UpstreamBridgeURL string `envconfig:"UPSTREAM_BRIDGE_URL" default:"http://localhost:8081"`
	UpstreamAPIKey    string `envconfig:"UPSTREAM_API_KEY"`

	// WebSocket connection limits.
	WSMaxClients      int64   `envconfig:"WS_MAX_CLIENTS" default:"200"`
	WSMaxPerIP        int     `envconfig:"WS_MAX_PER_IP" default:"10"`
	WSConnectionsRate float64 `envconfig:"WS_CONNECTIONS_PER_SECOND" default:"5"`
	WSConnectionBurst int     `envconfig:"WS_CONNECTION_BURST" default:"10"`

	// Number of recent messages mirrored into the Redis history cache.
	HistoryCacheSize int `envconfig:"HISTORY_CACHE_SIZE" default:"200"`
}

// Load reads configuration from the environment. A .env file, if present,
// is loaded first but never overrides real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.HistoryCacheSize < 0 {
		return nil, fmt.Errorf("HISTORY_CACHE_SIZE must not be negative")
	}

	return &cfg, nil
}
