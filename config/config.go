package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EventStoreClickHouse = "clickhouse"
	EventStorePostgres   = "postgres"
	EventStoreMemory     = "memory"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	JWTSecret      string
	JWTTTL         time.Duration
	CORSOrigins    []string
	TrustedProxies []string
	EventStore     string
	DatabaseURL    string
	ClickHouse     ClickHouseConfig
	RedisURL       string
	RateLimit      RateLimitConfig
	BootstrapAdmin BootstrapAdmin
}

type ClickHouseConfig struct {
	Host        string
	NativePort  int
	Database    string
	Username    string
	Password    string
	AsyncInsert bool
}

// RateLimitConfig caps requests per client within Window. Zero disables a limit.
type RateLimitConfig struct {
	Window time.Duration
	Events int
	Login  int
}

// BootstrapAdmin describes an admin account created at startup when missing.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

func (b BootstrapAdmin) Enabled() bool {
	return b.Email != "" && b.Password != ""
}

// Load loads configuration from environment variables, reading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an environment lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return fallback
	}

	cfg := &Config{
		Port:           get("PORT", "8080"),
		GinMode:        get("GIN_MODE", ""),
		LogLevel:       get("LOG_LEVEL", "info"),
		JWTSecret:      get("JWT_SECRET", ""),
		CORSOrigins:    splitList(get("CORS_ORIGINS", "")),
		TrustedProxies: splitList(get("TRUSTED_PROXIES", "")),
		EventStore:     strings.ToLower(get("EVENT_STORE", EventStoreClickHouse)),
		DatabaseURL:    get("DATABASE_URL", ""),
		RedisURL:       get("REDIS_URL", ""),
		BootstrapAdmin: BootstrapAdmin{
			Name:     get("ADMIN_NAME", "Administrator"),
			Email:    strings.ToLower(get("ADMIN_EMAIL", "")),
			Password: get("ADMIN_PASSWORD", ""),
		},
		ClickHouse: ClickHouseConfig{
			Host:     get("CLICKHOUSE_HOST", ""),
			Database: get("CLICKHOUSE_DB_NAME", ""),
			Username: get("CLICKHOUSE_USERNAME", ""),
			Password: get("CLICKHOUSE_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{Window: 10 * time.Minute},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required env var: DATABASE_URL")
	}

	var err error
	if cfg.JWTTTL, err = time.ParseDuration(get("JWT_TTL", "12h")); err != nil || cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL: %q", getenv("JWT_TTL"))
	}
	if cfg.RateLimit.Events, err = getInt(get("RATE_LIMIT_EVENTS", "120")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_EVENTS: %w", err)
	}
	if cfg.RateLimit.Login, err = getInt(get("RATE_LIMIT_LOGIN", "20")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_LOGIN: %w", err)
	}

	switch cfg.EventStore {
	case EventStoreClickHouse:
		if cfg.ClickHouse.Host == "" || cfg.ClickHouse.Database == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST and CLICKHOUSE_DB_NAME are required when EVENT_STORE=clickhouse")
		}
		if cfg.ClickHouse.NativePort, err = getInt(get("CLICKHOUSE_NATIVE_PORT", "9000")); err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
		}
		if cfg.ClickHouse.AsyncInsert, err = strconv.ParseBool(get("CLICKHOUSE_ASYNC_INSERT", "true")); err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_ASYNC_INSERT: %w", err)
		}
	case EventStorePostgres, EventStoreMemory:
	default:
		return nil, fmt.Errorf("unknown EVENT_STORE %q", cfg.EventStore)
	}

	return cfg, nil
}

func getInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
