package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// VaultConfig holds configuration for the Vault-backed credential store.
type VaultConfig struct {
	// Address is the Vault server address.
	Address string `json:"address" yaml:"address"`

	// Token is the Vault token. Whenever possible prefer injecting it via
	// the VAULT_TOKEN environment variable.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// MountPoint is the KV v2 mount point.
	MountPoint string `json:"mountPoint,omitempty" yaml:"mountPoint,omitempty"`

	// PathPrefix is prepended to service codes to form the secret path.
	PathPrefix string `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`

	// Timeout is the request timeout for Vault operations.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultVaultConfig returns a VaultConfig with default values.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		MountPoint: "secret",
		PathPrefix: "authgw/credentials",
		Timeout:    10 * time.Second,
	}
}

// VaultStore implements Store using the Vault KV v2 secrets engine. Each
// credential record is a secret under <mountPoint>/<pathPrefix>/<serviceCode>
// with the fields authKey, hashAlg, allowedIps, status and expiresAt.
type VaultStore struct {
	client     *vaultapi.Client
	mountPoint string
	pathPrefix string
	logger     observability.Logger
	metrics    *Metrics
}

// VaultStoreOption is a functional option for the Vault store.
type VaultStoreOption func(*VaultStore)

// WithVaultLogger sets the logger for the Vault store.
func WithVaultLogger(logger observability.Logger) VaultStoreOption {
	return func(s *VaultStore) {
		s.logger = logger
	}
}

// WithVaultMetrics sets the metrics for the Vault store.
func WithVaultMetrics(metrics *Metrics) VaultStoreOption {
	return func(s *VaultStore) {
		s.metrics = metrics
	}
}

// WithVaultClient sets a pre-built Vault API client, mainly for tests.
func WithVaultClient(client *vaultapi.Client) VaultStoreOption {
	return func(s *VaultStore) {
		s.client = client
	}
}

// NewVaultStore creates a new Vault-backed credential store.
func NewVaultStore(config *VaultConfig, opts ...VaultStoreOption) (*VaultStore, error) {
	if config == nil {
		config = DefaultVaultConfig()
	}
	if config.MountPoint == "" {
		config.MountPoint = "secret"
	}

	s := &VaultStore{
		mountPoint: config.MountPoint,
		pathPrefix: strings.Trim(config.PathPrefix, "/"),
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		apiConfig := vaultapi.DefaultConfig()
		if config.Address != "" {
			apiConfig.Address = config.Address
		}
		if config.Timeout > 0 {
			apiConfig.Timeout = config.Timeout
		}
		client, err := vaultapi.NewClient(apiConfig)
		if err != nil {
			return nil, fmt.Errorf("create vault client: %w", err)
		}
		if config.Token != "" {
			client.SetToken(config.Token)
		}
		s.client = client
	}

	return s, nil
}

// Lookup performs an exact-match lookup of a credential record.
func (s *VaultStore) Lookup(ctx context.Context, serviceCode, authKey string, status Status) (*Record, error) {
	start := time.Now()

	record, err := s.read(ctx, serviceCode)
	if err != nil {
		s.metrics.RecordLookup("vault", lookupResult(err), time.Since(start))
		return nil, err
	}

	if !record.matches(authKey, status) {
		s.metrics.RecordLookup("vault", "miss", time.Since(start))
		return nil, ErrNotFound
	}

	s.metrics.RecordLookup("vault", "hit", time.Since(start))
	return record, nil
}

// read fetches and decodes the secret for a service code.
func (s *VaultStore) read(ctx context.Context, serviceCode string) (*Record, error) {
	secret, err := s.client.KVv2(s.mountPoint).Get(ctx, s.secretPath(serviceCode))
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("vault credential fetch failed",
			observability.String("serviceCode", serviceCode),
			observability.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}

	return recordFromSecretData(serviceCode, secret.Data)
}

// secretPath builds the KV v2 path for a service code.
func (s *VaultStore) secretPath(serviceCode string) string {
	if s.pathPrefix == "" {
		return serviceCode
	}
	return s.pathPrefix + "/" + serviceCode
}

// recordFromSecretData maps Vault secret data to a credential record.
func recordFromSecretData(serviceCode string, data map[string]interface{}) (*Record, error) {
	authKey, ok := data["authKey"].(string)
	if !ok || authKey == "" {
		return nil, fmt.Errorf("credential secret for %q missing authKey", serviceCode)
	}

	record := &Record{
		ServiceCode: serviceCode,
		AuthKey:     authKey,
		Status:      StatusActive,
	}

	if alg, ok := data["hashAlg"].(string); ok {
		record.HashAlg = alg
	}
	if status, ok := data["status"].(string); ok && status != "" {
		record.Status = Status(strings.ToUpper(status))
	}
	if ips, ok := data["allowedIps"].(string); ok && ips != "" {
		for _, ip := range strings.Split(ips, ",") {
			if trimmed := strings.TrimSpace(ip); trimmed != "" {
				record.AllowedIPs = append(record.AllowedIPs, trimmed)
			}
		}
	}
	if raw, ok := data["expiresAt"].(string); ok && raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("credential secret for %q has invalid expiresAt: %w", serviceCode, err)
		}
		record.ExpiresAt = &expiresAt
	}

	return record, nil
}

// Ping verifies connectivity with Vault.
func (s *VaultStore) Ping(ctx context.Context) error {
	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if health.Sealed {
		return fmt.Errorf("%w: vault is sealed", ErrStoreUnavailable)
	}
	return nil
}

// Close releases store resources. The Vault API client has no close
// semantics, so this is a no-op.
func (s *VaultStore) Close() error {
	return nil
}

// Ensure VaultStore implements Store.
var _ Store = (*VaultStore)(nil)
