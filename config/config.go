// Package config loads pipeline configuration from environment variables.
// Invalid values (unknown timeframe, window below 5) are rejected at load
// so the process fails at start-up rather than mid-stream.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pairstream/internal/model"
)

// Defaults.
const (
	DefaultFeedBase       = "wss://stream.binance.com:9443/stream"
	DefaultDBURL          = "sqlite://data/pairstream.db"
	DefaultRollingWindow  = 20
	DefaultBatchSize      = 100
	DefaultFlushInterval  = time.Second
	DefaultAnalyticsEvery = time.Second
)

// Config holds all application configuration.
type Config struct {
	// Instruments. The first two form the analytics pair.
	Symbols []string

	// Enabled bar resolutions.
	Timeframes []model.Timeframe

	// Analytics
	RollingWindow     int
	AnalyticsInterval time.Duration

	// Tick writer
	BatchSize     int
	FlushInterval time.Duration

	// Upstream feed
	FeedEndpointBase string

	// Infrastructure
	DBURL       string
	RedisAddr   string
	RedisPass   string
	MetricsAddr string
	APIAddr     string

	// Optional alert webhook sink; empty disables it.
	AlertWebhookURL string
}

// Load reads configuration from environment variables with sensible
// defaults and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		RollingWindow:     getEnvInt("DEFAULT_ROLLING_WINDOW", DefaultRollingWindow),
		AnalyticsInterval: getEnvSeconds("ANALYTICS_INTERVAL", DefaultAnalyticsEvery),
		BatchSize:         getEnvInt("BATCH_SIZE", DefaultBatchSize),
		FlushInterval:     getEnvSeconds("FLUSH_INTERVAL", DefaultFlushInterval),
		FeedEndpointBase:  getEnv("FEED_ENDPOINT_BASE", DefaultFeedBase),
		DBURL:             getEnv("DB_URL", DefaultDBURL),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPass:         getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
		APIAddr:           getEnv("API_ADDR", ":8000"),
		AlertWebhookURL:   getEnv("ALERT_WEBHOOK_URL", ""),
	}

	for _, s := range strings.Split(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT"), ",") {
		sym := model.NormalizeSymbol(s)
		if sym == "" {
			continue
		}
		cfg.Symbols = append(cfg.Symbols, sym)
	}

	for _, s := range strings.Split(getEnv("TIMEFRAMES", "1s,1m,5m"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		tf, err := model.ParseTimeframe(s)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg.Timeframes = append(cfg.Timeframes, tf)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: no symbols configured")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("config: no timeframes configured")
	}
	if c.RollingWindow < 5 {
		return fmt.Errorf("config: rolling window must be >= 5, got %d", c.RollingWindow)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive, got %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("config: flush interval must be positive, got %v", c.FlushInterval)
	}
	if c.AnalyticsInterval <= 0 {
		return fmt.Errorf("config: analytics interval must be positive, got %v", c.AnalyticsInterval)
	}
	return nil
}

// Pair returns the two symbols the analytics task operates on.
// The second return is false when fewer than two symbols are configured.
func (c *Config) Pair() (string, string, bool) {
	if len(c.Symbols) < 2 {
		return "", "", false
	}
	return c.Symbols[0], c.Symbols[1], true
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvSeconds parses a float number of seconds (e.g. "0.5").
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}
