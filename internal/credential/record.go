// Package credential provides the credential record model and the store
// implementations used by the authentication gateway. Records are provisioned
// out-of-band by an administrative process; the gateway only ever reads them.
package credential

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm constants for stored auth keys.
const (
	HashAlgPlaintext = "plaintext"
	HashAlgSHA256    = "sha256"
	HashAlgBcrypt    = "bcrypt"
)

// Sentinel errors for credential store operations.
var (
	// ErrNotFound indicates that no matching credential record exists.
	ErrNotFound = errors.New("credential not found")

	// ErrStoreUnavailable indicates that the backing store could not be reached.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Status represents the lifecycle status of a credential record.
type Status string

// Credential statuses.
const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusRevoked  Status = "REVOKED"
)

// Record identifies a service permitted to call the gateway.
type Record struct {
	// ServiceCode is the unique identifier of the calling service.
	ServiceCode string `json:"serviceCode" yaml:"serviceCode"`

	// AuthKey is the shared secret. Depending on HashAlg it holds either the
	// plaintext key or a hash of it. It must never appear in logs.
	AuthKey string `json:"authKey" yaml:"authKey"`

	// HashAlg is the hash algorithm applied to AuthKey (plaintext, sha256, bcrypt).
	HashAlg string `json:"hashAlg,omitempty" yaml:"hashAlg,omitempty"`

	// AllowedIPs is the set of IP literals permitted to use this credential.
	// An empty list means no IP restriction.
	AllowedIPs []string `json:"allowedIps,omitempty" yaml:"allowedIps,omitempty"`

	// Status is the lifecycle status of the record.
	Status Status `json:"status" yaml:"status"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`

	// ExpiresAt is the optional expiry of the record.
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// IsExpired returns true if the record carries an expiry in the past.
func (r *Record) IsExpired() bool {
	if r.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*r.ExpiresAt)
}

// VerifyKey compares the provided auth key against the stored one using the
// record's hash algorithm. Comparison is constant-time for plaintext and
// sha256 stored keys.
func (r *Record) VerifyKey(key string) bool {
	switch r.HashAlg {
	case HashAlgSHA256:
		sum := sha256.Sum256([]byte(key))
		provided := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(provided), []byte(r.AuthKey)) == 1
	case HashAlgBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(r.AuthKey), []byte(key)) == nil
	default:
		return subtle.ConstantTimeCompare([]byte(key), []byte(r.AuthKey)) == 1
	}
}

// matches reports whether the record satisfies a lookup for the given auth
// key and status. Expired records never match.
func (r *Record) matches(key string, status Status) bool {
	if r.Status != status {
		return false
	}
	if r.IsExpired() {
		return false
	}
	return r.VerifyKey(key)
}

// HashKey hashes an auth key with the given algorithm. Useful for
// provisioning records in tests and tooling.
func HashKey(key, algorithm string) (string, error) {
	switch algorithm {
	case HashAlgSHA256:
		sum := sha256.Sum256([]byte(key))
		return hex.EncodeToString(sum[:]), nil
	case HashAlgBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case HashAlgPlaintext, "":
		return key, nil
	default:
		return "", errors.New("unsupported hash algorithm: " + algorithm)
	}
}

// Store is the read-only lookup contract used by the authentication
// strategies. Lookup returns ErrNotFound when no ACTIVE, unexpired record
// matches (serviceCode, authKey, status); any other error signals a store
// failure and must be treated as a denial by the caller.
type Store interface {
	// Lookup performs an exact-match lookup of a credential record.
	Lookup(ctx context.Context, serviceCode, authKey string, status Status) (*Record, error)

	// Ping verifies connectivity with the backing store.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
