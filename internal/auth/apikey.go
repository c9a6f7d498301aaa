package auth

import (
	"context"
	"crypto/subtle"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// DefaultAPIKeyHeader is the header carrying the client API key.
const DefaultAPIKeyHeader = "API-KEY"

// APIKeyConfig configures the API-key strategy.
type APIKeyConfig struct {
	// Header carries the API key. Defaults to API-KEY.
	Header string `yaml:"header,omitempty" json:"header,omitempty"`

	// Keys is the accepted key set.
	Keys []string `yaml:"keys,omitempty" json:"keys,omitempty"`

	// AllowedIPs is the static client IP allow-list. Empty means
	// unrestricted.
	AllowedIPs []string `yaml:"allowedIps,omitempty" json:"allowedIps,omitempty"`

	// ValidateKey enables matching the presented key against Keys. When
	// false any non-blank key passes; this permissive mode preserves the
	// behavior of earlier deployments and should stay off.
	ValidateKey bool `yaml:"validateKey" json:"validateKey"`
}

// apiKeyStrategy authenticates clients by API key and static IP allow-list.
type apiKeyStrategy struct {
	header      string
	keys        []string
	allowedIPs  []string
	validateKey bool
	logger      observability.Logger
}

// APIKeyOption is a functional option for the strategy.
type APIKeyOption func(*apiKeyStrategy)

// WithAPIKeyLogger sets the logger.
func WithAPIKeyLogger(logger observability.Logger) APIKeyOption {
	return func(s *apiKeyStrategy) {
		s.logger = logger
	}
}

// NewAPIKeyStrategy creates the API-key strategy.
func NewAPIKeyStrategy(config APIKeyConfig, opts ...APIKeyOption) Strategy {
	s := &apiKeyStrategy{
		header:      config.Header,
		keys:        config.Keys,
		allowedIPs:  config.AllowedIPs,
		validateKey: config.ValidateKey,
		logger:      observability.NopLogger(),
	}
	if s.header == "" {
		s.header = DefaultAPIKeyHeader
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *apiKeyStrategy) Name() string {
	return "apiKey"
}

// Authenticate rejects blank and, when validation is enabled, unrecognized
// API keys, then checks the static IP allow-list.
func (s *apiKeyStrategy) Authenticate(_ context.Context, rc *RequestContext) error {
	key := rc.HeaderValue(s.header)
	if key == "" {
		return ErrClientAuthFailed
	}

	if s.validateKey && !s.matchKey(key) {
		s.logger.Debug("api key rejected",
			observability.String("clientIp", rc.ClientIP),
		)
		return ErrClientAuthFailed
	}

	if len(s.allowedIPs) > 0 && !containsIP(s.allowedIPs, rc.ClientIP) {
		rc.DeniedAllowList = s.allowedIPs
		return ErrIPNotAllowed
	}

	return nil
}

// matchKey compares the presented key against the configured set in
// constant time per candidate.
func (s *apiKeyStrategy) matchKey(key string) bool {
	match := false
	for _, candidate := range s.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			match = true
		}
	}
	return match
}

var _ Strategy = (*apiKeyStrategy)(nil)
