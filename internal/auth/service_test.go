package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/credential"
)

func newServiceTestStore(t *testing.T, records ...*credential.Record) *credential.MemoryStore {
	t.Helper()

	store := credential.NewMemoryStore()
	store.LoadRecords(records)
	return store
}

func serviceRequestContext(code, key, clientIP string) *RequestContext {
	h := http.Header{}
	if code != "" {
		h.Set(DefaultServiceCodeHeader, code)
	}
	if key != "" {
		h.Set(DefaultServiceKeyHeader, key)
	}
	return &RequestContext{
		Path:     "/serviceAuth/ping",
		Header:   h,
		ClientIP: clientIP,
	}
}

func TestServiceCredentialStrategy_Authenticate(t *testing.T) {
	t.Parallel()

	expired := time.Now().Add(-time.Hour)
	store := newServiceTestStore(t,
		&credential.Record{ServiceCode: "svc1", AuthKey: "secretA", Status: credential.StatusActive},
		&credential.Record{
			ServiceCode: "svc2",
			AuthKey:     "secretB",
			Status:      credential.StatusActive,
			AllowedIPs:  []string{"10.0.0.1", "10.0.0.2"},
		},
		&credential.Record{ServiceCode: "svc3", AuthKey: "secretC", Status: credential.StatusInactive},
		&credential.Record{ServiceCode: "svc4", AuthKey: "secretD", Status: credential.StatusActive, ExpiresAt: &expired},
	)
	strategy := NewServiceCredentialStrategy(store, ServiceCredentialConfig{})

	tests := []struct {
		name     string
		code     string
		key      string
		clientIP string
		expected error
	}{
		{name: "active credential no allow list", code: "svc1", key: "secretA", clientIP: "203.0.113.9"},
		{name: "allowed ip", code: "svc2", key: "secretB", clientIP: "10.0.0.2"},
		{name: "missing code", code: "", key: "secretA", expected: ErrInvalidCredentialInput},
		{name: "missing key", code: "svc1", key: "", expected: ErrInvalidCredentialInput},
		{name: "whitespace code", code: "   ", key: "secretA", expected: ErrInvalidCredentialInput},
		{name: "unknown service", code: "nope", key: "secretA", expected: ErrCredentialNotFound},
		{name: "wrong key", code: "svc1", key: "wrong", expected: ErrCredentialNotFound},
		{name: "inactive credential", code: "svc3", key: "secretC", expected: ErrCredentialNotFound},
		{name: "expired credential", code: "svc4", key: "secretD", expected: ErrCredentialNotFound},
		{name: "ip outside allow list", code: "svc2", key: "secretB", clientIP: "172.16.0.9", expected: ErrIPNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rc := serviceRequestContext(tt.code, tt.key, tt.clientIP)
			err := strategy.Authenticate(context.Background(), rc)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestServiceCredentialStrategy_TrimsHeaders(t *testing.T) {
	t.Parallel()

	store := newServiceTestStore(t,
		&credential.Record{ServiceCode: "svc1", AuthKey: "secretA", Status: credential.StatusActive},
	)
	strategy := NewServiceCredentialStrategy(store, ServiceCredentialConfig{})

	rc := serviceRequestContext("  svc1  ", "  secretA  ", "")
	assert.NoError(t, strategy.Authenticate(context.Background(), rc))
	assert.Equal(t, "svc1", rc.ServiceCode)
}

func TestServiceCredentialStrategy_IPDenialLeavesAllowList(t *testing.T) {
	t.Parallel()

	store := newServiceTestStore(t,
		&credential.Record{
			ServiceCode: "svc1",
			AuthKey:     "secretA",
			Status:      credential.StatusActive,
			AllowedIPs:  []string{"10.0.0.1"},
		},
	)
	strategy := NewServiceCredentialStrategy(store, ServiceCredentialConfig{})

	rc := serviceRequestContext("svc1", "secretA", "203.0.113.9")
	err := strategy.Authenticate(context.Background(), rc)
	require.ErrorIs(t, err, ErrIPNotAllowed)
	assert.Equal(t, []string{"10.0.0.1"}, rc.DeniedAllowList)
}

func TestServiceCredentialStrategy_CustomHeaders(t *testing.T) {
	t.Parallel()

	store := newServiceTestStore(t,
		&credential.Record{ServiceCode: "svc1", AuthKey: "secretA", Status: credential.StatusActive},
	)
	strategy := NewServiceCredentialStrategy(store, ServiceCredentialConfig{
		CodeHeader: "X-Svc",
		KeyHeader:  "X-Key",
	})

	h := http.Header{}
	h.Set("X-Svc", "svc1")
	h.Set("X-Key", "secretA")
	rc := &RequestContext{Header: h}

	assert.NoError(t, strategy.Authenticate(context.Background(), rc))
}

type countingStore struct {
	credential.MemoryStore
	lookups int
}

func (s *countingStore) Lookup(ctx context.Context, serviceCode, authKey string, status credential.Status) (*credential.Record, error) {
	s.lookups++
	return s.MemoryStore.Lookup(ctx, serviceCode, authKey, status)
}

func TestServiceCredentialStrategy_BlankInputSkipsLookup(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	strategy := NewServiceCredentialStrategy(store, ServiceCredentialConfig{})

	for _, rc := range []*RequestContext{
		serviceRequestContext("", "secretA", ""),
		serviceRequestContext("svc1", "", ""),
		serviceRequestContext("   ", "   ", ""),
	} {
		err := strategy.Authenticate(context.Background(), rc)
		assert.ErrorIs(t, err, ErrInvalidCredentialInput)
	}

	assert.Zero(t, store.lookups)
}

type erroringStore struct{}

func (erroringStore) Lookup(context.Context, string, string, credential.Status) (*credential.Record, error) {
	return nil, credential.ErrStoreUnavailable
}

func (erroringStore) Ping(context.Context) error { return nil }

func (erroringStore) Close() error { return nil }

func TestServiceCredentialStrategy_StoreFailureIsInternal(t *testing.T) {
	t.Parallel()

	strategy := NewServiceCredentialStrategy(erroringStore{}, ServiceCredentialConfig{})

	rc := serviceRequestContext("svc1", "secretA", "")
	err := strategy.Authenticate(context.Background(), rc)
	require.Error(t, err)

	var authErr *Error
	assert.False(t, errors.As(err, &authErr))
	assert.ErrorIs(t, err, credential.ErrStoreUnavailable)
}
