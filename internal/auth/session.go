package auth

import (
	"context"
	"strings"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// SessionTokenHeader is the fallback header for session tokens presented
// outside the Authorization header.
const SessionTokenHeader = "X-Session-Token"

// Validator decides whether a session token is valid. Implementations must
// be safe for concurrent use.
type Validator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, token string) (bool, error)

// Validate implements the Validator interface.
func (f ValidatorFunc) Validate(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// sessionStrategy authenticates post-login requests by delegating the
// session token to a validator.
type sessionStrategy struct {
	validator Validator
	logger    observability.Logger
}

// SessionOption is a functional option for the strategy.
type SessionOption func(*sessionStrategy)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger observability.Logger) SessionOption {
	return func(s *sessionStrategy) {
		s.logger = logger
	}
}

// NewSessionStrategy creates the session strategy around the validator.
func NewSessionStrategy(validator Validator, opts ...SessionOption) Strategy {
	s := &sessionStrategy{
		validator: validator,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *sessionStrategy) Name() string {
	return "session"
}

// Authenticate extracts the session token and delegates to the validator.
// A missing token, a rejection and a validator error all yield the same
// invalid-session denial so callers cannot probe validator internals.
func (s *sessionStrategy) Authenticate(ctx context.Context, rc *RequestContext) error {
	token := extractSessionToken(rc)
	if token == "" {
		return ErrSessionInvalid
	}

	valid, err := s.validator.Validate(ctx, token)
	if err != nil {
		s.logger.Warn("session validation failed",
			observability.Error(err),
		)
		return ErrSessionInvalid
	}
	if !valid {
		return ErrSessionInvalid
	}

	return nil
}

// extractSessionToken takes the bearer token from the Authorization header,
// falling back to the session token header.
func extractSessionToken(rc *RequestContext) string {
	authorization := rc.HeaderValue("Authorization")
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "Bearer ") {
		return strings.TrimSpace(authorization[7:])
	}
	return rc.HeaderValue(SessionTokenHeader)
}

var _ Strategy = (*sessionStrategy)(nil)
