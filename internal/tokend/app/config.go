package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./tokend.db)
	SeedFile     string // Optional: JSON file of clients applied at startup

	TokenTTL      time.Duration // Optional: lifetime of minted tokens (default: 2h)
	QueryTimeout  time.Duration // Optional: per-query store timeout (default: 5s)
	SweepInterval time.Duration // Optional: expired-token sweep interval (default: 1h)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("TOKEND_DATABASE_FILE", "tokend.db"),
		SeedFile:     os.Getenv("TOKEND_SEED_FILE"), // Optional: no seed when unset

		TokenTTL:      getEnvDurationOrDefault("TOKEND_TOKEN_TTL", 2*time.Hour),
		QueryTimeout:  getEnvDurationOrDefault("TOKEND_QUERY_TIMEOUT", 5*time.Second),
		SweepInterval: getEnvDurationOrDefault("TOKEND_SWEEP_INTERVAL", 1*time.Hour),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
