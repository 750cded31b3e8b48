package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer      string // Issuer claim for access tokens (default: lockbridge-gateway)
	SigningSeed string // Optional: hex-encoded 32-byte Ed25519 seed; ephemeral key when empty

	AccessTokenTTL time.Duration // Access token lifetime; refresh window is always 24x this (default: 1h)

	CatalogFile  string // Path to the YAML integration catalog (default: ./integrations.yaml)
	DatabaseFile string // Path to the SQLite database file (default: ./gateway.db)
	PepperFile   string // Optional: path to the secret-hash pepper file

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-session sweep interval (default: 5m)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("GATEWAY_ISSUER", "lockbridge-gateway"),
		SigningSeed:          os.Getenv("GATEWAY_SIGNING_SEED"),
		AccessTokenTTL:       getEnvDurationOrDefault("GATEWAY_ACCESS_TOKEN_TTL", time.Hour),
		CatalogFile:          getEnvOrDefault("GATEWAY_CATALOG_FILE", "integrations.yaml"),
		DatabaseFile:         getEnvOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"),
		PepperFile:           os.Getenv("GATEWAY_PEPPER_FILE"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
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
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
