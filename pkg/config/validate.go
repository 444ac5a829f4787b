package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// provider.base_url is required.
	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required"))
	}

	switch c.Provider.ReasoningEffort {
	case "", "low", "medium", "high":
		// valid
	default:
		errs = append(errs, fmt.Errorf("provider.reasoning_effort must be \"low\", \"medium\", or \"high\", got %q", c.Provider.ReasoningEffort))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		errs = append(errs, fmt.Errorf("retry.base_delay (%s) must not exceed retry.max_delay (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay))
	}

	if c.OHTTP.Enabled {
		if err := c.OHTTP.Config.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ohttp: %w", err))
		}
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// usage.type must be a known value.
	switch c.Usage.Type {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("usage.type must be \"none\", \"memory\" or \"postgres\", got %q", c.Usage.Type))
	}

	// If usage.type is "postgres", DSN or DSNFile must be set.
	if c.Usage.Type == "postgres" {
		if c.Usage.Postgres.DSN == "" && c.Usage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("usage.postgres.dsn or usage.postgres.dsn_file is required when usage.type is \"postgres\""))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0, got %d", c.Auth.RateLimit.RequestsPerMinute))
	}

	switch c.Logging.Format {
	case "", "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
