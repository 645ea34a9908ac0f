package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBQueryTimeout time.Duration
	AutoMigrate    bool

	// Server
	Port           string
	CORSOrigins    []string
	Env            string
	LogLevel       zerolog.Level
	RequestTimeout time.Duration

	// Rate limiting
	RateLimitPerMinute int
	RateLimitBurst     int
	// TrustedProxies are CIDR ranges whose X-Forwarded-For is believed; empty means none
	TrustedProxies []string

	// ActualsConcurrency bounds parallel ledger queries per list request
	ActualsConcurrency int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         p.int32("DB_MAX_CONNS", 10),
		DBQueryTimeout:     p.duration("DB_QUERY_TIMEOUT", 5*time.Second),
		AutoMigrate:        p.bool("AUTO_MIGRATE", true),
		Port:               getEnv("PORT", "8080"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Env:                getEnv("ENV", "development"),
		LogLevel:           p.level("LOG_LEVEL", zerolog.InfoLevel),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", 15*time.Second),
		RateLimitPerMinute: p.int("RATE_LIMIT_PER_MINUTE", 300),
		RateLimitBurst:     p.int("RATE_LIMIT_BURST", 30),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
		ActualsConcurrency: p.int("ACTUALS_CONCURRENCY", 4),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}
	if c.DBQueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be at least 1")
	}
	if c.ActualsConcurrency < 1 {
		return fmt.Errorf("ACTUALS_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parser keeps the first conversion error so Load can report it after reading every key
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) int32(key string, defaultValue int32) int32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return int32(n)
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) level(key string, defaultValue zerolog.Level) zerolog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	level, err := zerolog.ParseLevel(strings.ToLower(value))
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return level
}
