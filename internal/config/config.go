// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MinSessionSecretBytes is the minimum length of the session secret.
// Shorter secrets make HS256 tokens brute-forceable.
const MinSessionSecretBytes = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis). Optional: without it the service runs on the
	// in-process rate limiter and skips the audit stream.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Session settings
	SessionSecret string        `env:"SESSION_SECRET" envDefault:""`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// CSRF settings
	CSRFTokenTTL time.Duration `env:"CSRF_TOKEN_TTL" envDefault:"168h"`
	// Comma-separated request paths exempt from CSRF checks.
	CSRFExemptPaths string `env:"CSRF_EXEMPT_PATHS" envDefault:"/v1/auth/login,/v1/auth/register"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax     int           `env:"RATE_LIMIT_MAX" envDefault:"100"`

	// Comma-separated CIDR ranges of proxies whose X-Forwarded-For
	// headers are trusted (e.g., "10.0.0.0/8,172.16.0.0/12").
	TrustedProxies string `env:"TRUSTED_PROXIES" envDefault:""`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Audit worker
	AuditWorkerEnabled bool `env:"AUDIT_WORKER_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitAndTrim(c.CORSAllowedOrigins)
}

// GetCSRFExemptPaths parses the comma-separated exempt path list.
func (c *Config) GetCSRFExemptPaths() []string {
	return splitAndTrim(c.CSRFExemptPaths)
}

// GetTrustedProxies parses the comma-separated CIDR list.
func (c *Config) GetTrustedProxies() []string {
	return splitAndTrim(c.TrustedProxies)
}

// Validate checks invariants that env parsing cannot express.
// In development a missing session secret is generated on the fly;
// sessions then do not survive a restart, which is acceptable there
// and nowhere else.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("SESSION_SECRET is required in production")
		}
		secret := make([]byte, MinSessionSecretBytes)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate dev session secret: %w", err)
		}
		c.SessionSecret = hex.EncodeToString(secret)
	}

	if len(c.SessionSecret) < MinSessionSecretBytes {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes, got %d", MinSessionSecretBytes, len(c.SessionSecret))
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// splitAndTrim splits a comma-separated list, dropping empty entries.
func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
