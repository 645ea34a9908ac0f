package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "DB_MAX_CONNS", "DB_QUERY_TIMEOUT", "AUTO_MIGRATE", "PORT", "CORS_ORIGINS",
		"ENV", "LOG_LEVEL", "REQUEST_TIMEOUT", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST", "ACTUALS_CONCURRENCY", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/budget")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/budget", cfg.DatabaseURL)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, 5*time.Second, cfg.DBQueryTimeout)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 300, cfg.RateLimitPerMinute)
	assert.Equal(t, 30, cfg.RateLimitBurst)
	assert.Equal(t, 4, cfg.ActualsConcurrency)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db/budget")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("DB_QUERY_TIMEOUT", "750ms")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ACTUALS_CONCURRENCY", "8")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.0/24")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 750*time.Millisecond, cfg.DBQueryTimeout)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 8, cfg.ActualsConcurrency)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.0/24"}, cfg.TrustedProxies)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "DB_MAX_CONNS", "many"},
		{"zero conns", "DB_MAX_CONNS", "0"},
		{"conns overflow int32", "DB_MAX_CONNS", "4294967297"},
		{"conns just over int32", "DB_MAX_CONNS", "2147483648"},
		{"bad duration", "DB_QUERY_TIMEOUT", "5 seconds"},
		{"bad bool", "AUTO_MIGRATE", "sometimes"},
		{"bad level", "LOG_LEVEL", "loud"},
		{"zero concurrency", "ACTUALS_CONCURRENCY", "0"},
		{"zero burst", "RATE_LIMIT_BURST", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/budget")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
