// Package session provides the JWT-backed session token validator used by
// the post-login authentication strategy.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Config configures the JWT session validator. Exactly one of JWKSURL and
// HMACSecret must be set.
type Config struct {
	// JWKSURL is the JSON Web Key Set endpoint of the session issuer.
	JWKSURL string `yaml:"jwksUrl,omitempty" json:"jwksUrl,omitempty"`

	// HMACSecret is the shared signing secret for HS256 tokens.
	HMACSecret string `yaml:"hmacSecret,omitempty" json:"hmacSecret,omitempty"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience, when set, must be present in the token's aud claim.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// ClockSkew is the accepted clock skew for time-based claims.
	ClockSkew time.Duration `yaml:"clockSkew,omitempty" json:"clockSkew,omitempty"`

	// RefreshInterval bounds how often the JWKS is re-fetched.
	RefreshInterval time.Duration `yaml:"refreshInterval,omitempty" json:"refreshInterval,omitempty"`
}

// Validate validates the session validator configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("session validator config is required")
	}
	if c.JWKSURL == "" && c.HMACSecret == "" {
		return fmt.Errorf("session validator requires a JWKS URL or an HMAC secret")
	}
	if c.JWKSURL != "" && c.HMACSecret != "" {
		return fmt.Errorf("session validator accepts either a JWKS URL or an HMAC secret, not both")
	}
	return nil
}

// JWTValidator validates session JWTs against the issuer's keys.
type JWTValidator struct {
	config *Config
	keySet jwk.Set
	logger observability.Logger
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*JWTValidator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *JWTValidator) {
		v.logger = logger
	}
}

// WithKeySet sets the key set directly, bypassing JWKS fetching. Used by
// tests and static key deployments.
func WithKeySet(keySet jwk.Set) ValidatorOption {
	return func(v *JWTValidator) {
		v.keySet = keySet
	}
}

// NewJWTValidator creates a session validator. The context governs the
// lifetime of the background JWKS refresher.
func NewJWTValidator(ctx context.Context, config *Config, opts ...ValidatorOption) (*JWTValidator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := &JWTValidator{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.keySet == nil && config.JWKSURL != "" {
		refresh := config.RefreshInterval
		if refresh <= 0 {
			refresh = 15 * time.Minute
		}
		cache := jwk.NewCache(ctx)
		if err := cache.Register(config.JWKSURL, jwk.WithMinRefreshInterval(refresh)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}
		v.keySet = jwk.NewCachedSet(cache, config.JWKSURL)
	}

	return v, nil
}

// Validate parses and verifies the token. A malformed, unverifiable or
// expired token yields (false, nil); only infrastructure-level failures
// surface as errors.
func (v *JWTValidator) Validate(ctx context.Context, token string) (bool, error) {
	opts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithValidate(true),
	}

	if v.keySet != nil {
		opts = append(opts, jwt.WithKeySet(v.keySet, jws.WithInferAlgorithmFromKey(true)))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, []byte(v.config.HMACSecret)))
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}
	if v.config.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.config.ClockSkew))
	}

	if _, err := jwt.Parse([]byte(token), opts...); err != nil {
		v.logger.Debug("session token rejected",
			observability.Error(err),
		)
		return false, nil
	}

	return true, nil
}
