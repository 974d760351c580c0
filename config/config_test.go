package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":   "secret",
		"DATABASE_URL": "postgres://localhost/matribhumi?sslmode=disable",
		"EVENT_STORE":  "postgres",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
	assert.Equal(t, EventStorePostgres, cfg.EventStore)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 120, cfg.RateLimit.Events)
	assert.Equal(t, 20, cfg.RateLimit.Login)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.BootstrapAdmin.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["EVENT_STORE"] = "ClickHouse"
	env["CLICKHOUSE_HOST"] = "ch.internal"
	env["CLICKHOUSE_DB_NAME"] = "analytics"
	env["CLICKHOUSE_NATIVE_PORT"] = "9440"
	env["CORS_ORIGINS"] = "https://matribhumi.example, ,https://admin.matribhumi.example"
	env["JWT_TTL"] = "30m"
	env["RATE_LIMIT_EVENTS"] = "0"
	env["ADMIN_EMAIL"] = "Admin@Example.com"
	env["ADMIN_PASSWORD"] = "changeme123"

	cfg, err := FromEnv(envOf(env))
	require.NoError(t, err)

	assert.Equal(t, EventStoreClickHouse, cfg.EventStore)
	assert.Equal(t, 9440, cfg.ClickHouse.NativePort)
	assert.True(t, cfg.ClickHouse.AsyncInsert)
	assert.Equal(t, []string{"https://matribhumi.example", "https://admin.matribhumi.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Zero(t, cfg.RateLimit.Events)
	assert.True(t, cfg.BootstrapAdmin.Enabled())
	assert.Equal(t, "admin@example.com", cfg.BootstrapAdmin.Email)
}

func TestFromEnv_ClickHouseAsyncInsert(t *testing.T) {
	env := baseEnv()
	env["EVENT_STORE"] = "clickhouse"
	env["CLICKHOUSE_HOST"] = "ch.internal"
	env["CLICKHOUSE_DB_NAME"] = "analytics"
	env["CLICKHOUSE_ASYNC_INSERT"] = "false"

	cfg, err := FromEnv(envOf(env))
	require.NoError(t, err)
	assert.False(t, cfg.ClickHouse.AsyncInsert)

	env["CLICKHOUSE_ASYNC_INSERT"] = "sometimes"
	_, err = FromEnv(envOf(env))
	assert.ErrorContains(t, err, "CLICKHOUSE_ASYNC_INSERT")
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing jwt secret", "JWT_SECRET", ""},
		{"missing database url", "DATABASE_URL", ""},
		{"bad ttl", "JWT_TTL", "forever"},
		{"negative ttl", "JWT_TTL", "-1h"},
		{"bad rate limit", "RATE_LIMIT_LOGIN", "many"},
		{"negative rate limit", "RATE_LIMIT_EVENTS", "-3"},
		{"unknown store", "EVENT_STORE", "mongo"},
		{"clickhouse without host", "EVENT_STORE", "clickhouse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.val
			_, err := FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}
