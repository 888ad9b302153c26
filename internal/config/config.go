package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP        HTTPConfig
	Graph       GraphConfig
	Logging     LoggingConfig
	Eligibility EligibilityConfig
	Scorer      ScorerConfig
	RateLimit   RateLimitConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MetricsEnabled    bool
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the graph database.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

// EligibilityConfig tunes the eligible-group discovery cache. The recheck
// interval is a caching policy, not part of the eligibility rule.
type EligibilityConfig struct {
	RecheckInterval time.Duration
}

// ScorerConfig tunes the score-recompute job.
type ScorerConfig struct {
	Iterations int
	Workers    int
	Interval   time.Duration
}

// RateLimitConfig bounds the write surface exposed to end users.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultRecheckInterval  = time.Hour
	defaultScorerIterations = 10
	defaultScorerWorkers    = 4
	defaultRateLimit        = 20.0
	defaultRateBurst        = 40
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Eligibility: EligibilityConfig{
			RecheckInterval: defaultRecheckInterval,
		},
		Scorer: ScorerConfig{
			Iterations: parseIntWithDefault("SCORER_ITERATIONS", defaultScorerIterations),
			Workers:    parseIntWithDefault("SCORER_WORKERS", defaultScorerWorkers),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloatWithDefault("RATE_LIMIT_RPS", defaultRateLimit),
			Burst:             parseIntWithDefault("RATE_LIMIT_BURST", defaultRateBurst),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if d, err := parseDuration("SERVER_READ_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HTTP.ReadTimeout = d
	}
	if d, err := parseDuration("SERVER_WRITE_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HTTP.WriteTimeout = d
	}
	if d, err := parseDuration("SERVER_IDLE_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HTTP.IdleTimeout = d
	}
	if d, err := parseDuration("SERVER_SHUTDOWN_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HTTP.ShutdownTimeout = d
	}
	if d, err := parseDuration("ELIGIBILITY_RECHECK_INTERVAL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Eligibility.RecheckInterval = d
	}
	if d, err := parseDuration("SCORER_INTERVAL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Scorer.Interval = d
	}

	cfg.HTTP.MetricsEnabled = parseBoolWithDefault("SERVER_METRICS_ENABLED", true)
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseFloatWithDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
