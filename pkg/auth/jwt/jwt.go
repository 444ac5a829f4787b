// Package jwt authenticates bearer tokens signed by an identity provider
// whose RSA keys are published as a JWKS document.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/confwhisper/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer and Audience are checked when non-empty.
	Issuer   string
	Audience string

	// JWKSURL serves the signing keys.
	JWKSURL string

	// UserClaim names the claim used as subject. Default: "sub".
	UserClaim string

	// TierClaim names the claim holding the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim holds a space-separated string or an array. Default: "scope".
	ScopesClaim string

	// CacheTTL bounds how long fetched keys are trusted. Default: 1h.
	CacheTTL time.Duration

	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates RS256/384/512 bearer tokens.
type Authenticator struct {
	cfg    Config
	keys   *keySet
	parser *jwtlib.Parser
}

// New creates a JWT authenticator.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		cfg:    cfg,
		keys:   newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL),
		parser: jwtlib.NewParser(opts...),
	}
}

// Authenticate abstains without a bearer token, and votes No for any token
// that fails signature, expiry, issuer, audience or subject checks.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.Result{}
	}
	if raw = strings.TrimSpace(raw); raw == "" {
		return auth.Reject(errors.New("empty bearer token"))
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(tok *jwtlib.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return a.keys.lookup(ctx, kid)
	})
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Reject(fmt.Errorf("invalid JWT: %w", err))
	}

	subject, _ := claims[a.cfg.UserClaim].(string)
	if subject == "" {
		return auth.Reject(fmt.Errorf("JWT missing %q claim", a.cfg.UserClaim))
	}
	tier, _ := claims[a.cfg.TierClaim].(string)

	return auth.Accept(auth.Identity{
		Subject:     subject,
		ServiceTier: tier,
		Scopes:      scopes(claims[a.cfg.ScopesClaim]),
	})
}

func scopes(v any) []string {
	var out []string
	switch v := v.(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
