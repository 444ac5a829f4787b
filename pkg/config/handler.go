package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/confwhisper/pkg/auth"
	"github.com/rhuss/confwhisper/pkg/auth/apikey"
	"github.com/rhuss/confwhisper/pkg/auth/jwt"
	"github.com/rhuss/confwhisper/pkg/provider/confwhisper"
	"github.com/rhuss/confwhisper/pkg/retry"
	"github.com/rhuss/confwhisper/pkg/usage"
	"github.com/rhuss/confwhisper/pkg/usage/memory"
	"github.com/rhuss/confwhisper/pkg/usage/postgres"
)

// HandlerOptions maps the provider, retry and ohttp sections to handler
// options.
func (c *Config) HandlerOptions(logger *slog.Logger) confwhisper.Options {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = c.Retry.MaxRetries
	policy.BaseDelay = c.Retry.BaseDelay
	policy.MaxDelay = c.Retry.MaxDelay
	policy.RetryAllErrors = c.Retry.RetryAllErrors

	opts := confwhisper.Options{
		BaseURL:         c.Provider.BaseURL,
		APIKey:          c.Provider.APIKey,
		Headers:         c.Provider.Headers,
		ModelID:         c.Provider.ModelID,
		ModelInfo:       c.Provider.ModelInfo,
		ReasoningEffort: c.Provider.ReasoningEffort,
		Retry:           &policy,
		Logger:          logger,
	}
	if c.OHTTP.Enabled {
		ohttpCfg := c.OHTTP.Config
		opts.OHTTP = &ohttpCfg
	}
	return opts
}

// AuthChain builds the authenticator chain and optional rate limiter for
// the auth section.
func (c *Config) AuthChain() (*auth.Chain, auth.RateLimiter) {
	chain := &auth.Chain{}
	switch c.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(c.Auth.APIKeys))
		for _, k := range c.Auth.APIKeys {
			keys = append(keys, apikey.Key{Key: k.Key, Subject: k.Subject, ServiceTier: k.ServiceTier})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(keys)}
	case "jwt":
		chain.Authenticators = []auth.Authenticator{jwt.New(jwt.Config{
			Issuer:    c.Auth.JWT.Issuer,
			Audience:  c.Auth.JWT.Audience,
			JWKSURL:   c.Auth.JWT.JWKSURL,
			UserClaim: c.Auth.JWT.UserClaim,
			TierClaim: c.Auth.JWT.TierClaim,
			CacheTTL:  c.Auth.JWT.CacheTTL,
		})}
	default:
		chain = auth.Open()
	}

	var limiter auth.RateLimiter
	if c.Auth.RateLimit.RequestsPerMinute > 0 || len(c.Auth.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(c.Auth.RateLimit.Tiers, c.Auth.RateLimit.RequestsPerMinute)
	}
	return chain, limiter
}

// OpenLedger opens the usage ledger selected by usage.type.
func (c *Config) OpenLedger(ctx context.Context) (usage.Ledger, error) {
	switch c.Usage.Type {
	case "postgres":
		l, err := postgres.New(ctx, postgres.Config{
			DSN:            c.Usage.Postgres.DSN,
			MaxConns:       c.Usage.Postgres.MaxConns,
			MigrateOnStart: c.Usage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres usage ledger: %w", err)
		}
		return l, nil
	case "memory":
		return memory.New(), nil
	default:
		return usage.Nop{}, nil
	}
}
