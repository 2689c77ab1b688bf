package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the realtime service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	JWTSecret             string
	PresenceTTL           time.Duration
	HeartbeatInterval     time.Duration
	TrendingWindow        time.Duration
	AnalyticsWindowDays   int
	AnalyticsQueryTimeout time.Duration
	AnalyticsCacheTTL     time.Duration
	RecentEventsLimit     int
	TrendingLimit         int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COURSORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Coursora API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("presence.ttl", "120s")
	v.SetDefault("heartbeat.interval", "30s")
	v.SetDefault("trending.window", "1h")
	v.SetDefault("trending.limit", 5)
	v.SetDefault("analytics.window_days", 30)
	v.SetDefault("analytics.query_timeout", "3s")
	v.SetDefault("analytics.cache_ttl", "1m")
	v.SetDefault("events.recent_limit", 50)

	presenceTTL, err := parseDuration(v, "presence.ttl")
	if err != nil {
		return Config{}, err
	}

	heartbeatInterval, err := parseDuration(v, "heartbeat.interval")
	if err != nil {
		return Config{}, err
	}

	trendingWindow, err := parseDuration(v, "trending.window")
	if err != nil {
		return Config{}, err
	}

	queryTimeout, err := parseDuration(v, "analytics.query_timeout")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "analytics.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		PresenceTTL:           presenceTTL,
		HeartbeatInterval:     heartbeatInterval,
		TrendingWindow:        trendingWindow,
		AnalyticsWindowDays:   v.GetInt("analytics.window_days"),
		AnalyticsQueryTimeout: queryTimeout,
		AnalyticsCacheTTL:     cacheTTL,
		RecentEventsLimit:     v.GetInt("events.recent_limit"),
		TrendingLimit:         v.GetInt("trending.limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	// A heartbeat interval at or above the TTL would mark users offline
	// between two perfectly healthy heartbeats.
	if cfg.HeartbeatInterval >= cfg.PresenceTTL {
		return Config{}, fmt.Errorf("heartbeat interval %s must be shorter than presence ttl %s", cfg.HeartbeatInterval, cfg.PresenceTTL)
	}

	if cfg.AnalyticsWindowDays <= 0 {
		cfg.AnalyticsWindowDays = 30
	}

	if cfg.RecentEventsLimit <= 0 {
		cfg.RecentEventsLimit = 50
	}

	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return parsed, nil
}
