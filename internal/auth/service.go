package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/authgw/internal/credential"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Default service credential header names.
const (
	DefaultServiceCodeHeader = "X-Service-Code"
	DefaultServiceKeyHeader  = "X-Service-Auth-Key"
)

// ServiceCredentialConfig configures the service credential strategy.
type ServiceCredentialConfig struct {
	// CodeHeader carries the service code. Defaults to X-Service-Code.
	CodeHeader string `yaml:"codeHeader,omitempty" json:"codeHeader,omitempty"`

	// KeyHeader carries the auth key. Defaults to X-Service-Auth-Key.
	KeyHeader string `yaml:"keyHeader,omitempty" json:"keyHeader,omitempty"`
}

// serviceCredentialStrategy authenticates calling services by credential
// pair with a per-credential IP allow-list.
type serviceCredentialStrategy struct {
	store      credential.Store
	codeHeader string
	keyHeader  string
	logger     observability.Logger
}

// ServiceCredentialOption is a functional option for the strategy.
type ServiceCredentialOption func(*serviceCredentialStrategy)

// WithServiceCredentialLogger sets the logger.
func WithServiceCredentialLogger(logger observability.Logger) ServiceCredentialOption {
	return func(s *serviceCredentialStrategy) {
		s.logger = logger
	}
}

// NewServiceCredentialStrategy creates the service credential strategy
// backed by the given store.
func NewServiceCredentialStrategy(store credential.Store, config ServiceCredentialConfig, opts ...ServiceCredentialOption) Strategy {
	s := &serviceCredentialStrategy{
		store:      store,
		codeHeader: config.CodeHeader,
		keyHeader:  config.KeyHeader,
		logger:     observability.NopLogger(),
	}
	if s.codeHeader == "" {
		s.codeHeader = DefaultServiceCodeHeader
	}
	if s.keyHeader == "" {
		s.keyHeader = DefaultServiceKeyHeader
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *serviceCredentialStrategy) Name() string {
	return "serviceCredential"
}

// Authenticate checks the credential pair against the store and then the
// record's IP allow-list. Blank input is rejected before any store access.
// The auth key never appears in logs or audit data.
func (s *serviceCredentialStrategy) Authenticate(ctx context.Context, rc *RequestContext) error {
	code := rc.HeaderValue(s.codeHeader)
	key := rc.HeaderValue(s.keyHeader)
	if code == "" || key == "" {
		return ErrInvalidCredentialInput
	}
	rc.ServiceCode = code

	record, err := s.store.Lookup(ctx, code, key, credential.StatusActive)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.logger.Debug("service credential rejected",
				observability.String("serviceCode", code),
			)
			return ErrCredentialNotFound
		}
		return fmt.Errorf("credential lookup for service %s: %w", code, err)
	}

	if len(record.AllowedIPs) > 0 && !containsIP(record.AllowedIPs, rc.ClientIP) {
		rc.DeniedAllowList = record.AllowedIPs
		return ErrIPNotAllowed
	}

	return nil
}

var _ Strategy = (*serviceCredentialStrategy)(nil)
