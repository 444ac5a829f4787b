// Package config provides unified configuration for confwhisper.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CONFWHISPER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/ohttp"
)

// Config holds all configuration for confwhisper.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	Retry         RetryConfig         `yaml:"retry"`
	OHTTP         OHTTPConfig         `yaml:"ohttp"`
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Usage         UsageConfig         `yaml:"usage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ProviderConfig describes the OpenAI-compatible backend.
type ProviderConfig struct {
	BaseURL         string            `yaml:"base_url"`     // required, including /v1
	APIKey          string            `yaml:"api_key"`      // optional
	APIKeyFile      string            `yaml:"api_key_file"` // _file variant for api_key
	Headers         map[string]string `yaml:"headers"`
	ModelID         string            `yaml:"model_id"`
	ModelInfo       *api.ModelInfo    `yaml:"model_info"`
	ReasoningEffort string            `yaml:"reasoning_effort"` // "", low, medium, high
}

// RetryConfig controls retries of the streaming call.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`      // default: 3
	BaseDelay      time.Duration `yaml:"base_delay"`       // default: 1s
	MaxDelay       time.Duration `yaml:"max_delay"`        // default: 10s
	RetryAllErrors bool          `yaml:"retry_all_errors"` // default: false (rate limits only)
}

// OHTTPConfig enables Oblivious HTTP.
type OHTTPConfig struct {
	Enabled      bool `yaml:"enabled"`
	ohttp.Config `yaml:",inline"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0, streams are unbounded
	MaxBodySize  int64         `yaml:"max_body_size"` // default: 10 MiB
}

// UsageConfig selects the token usage ledger.
type UsageConfig struct {
	Type     string         `yaml:"type"` // "none", "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits requests per subject and minute. Zero disables.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"` // tier name -> requests per minute
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds JWT bearer token validation settings.
type JWTConfig struct {
	Issuer    string        `yaml:"issuer"`
	Audience  string        `yaml:"audience"`
	JWKSURL   string        `yaml:"jwks_url"`
	UserClaim string        `yaml:"user_claim"` // default: "sub"
	TierClaim string        `yaml:"tier_claim"` // default: "tier"
	CacheTTL  time.Duration `yaml:"cache_ttl"`  // default: 1h
}

// LoggingConfig holds log level, output format and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR
	Format string `yaml:"format"` // text or json
	Debug  string `yaml:"debug"`  // comma-separated categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
		},
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			MaxBodySize: 10 << 20,
		},
		Usage: UsageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}
