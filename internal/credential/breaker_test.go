package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore always fails lookups with a store error.
type failingStore struct{}

func (s *failingStore) Lookup(context.Context, string, string, Status) (*Record, error) {
	return nil, errors.New("connection refused")
}

func (s *failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func (s *failingStore) Close() error { return nil }

func TestBreakerStorePassThrough(t *testing.T) {
	t.Parallel()

	inner := NewMemoryStore()
	inner.Add(&Record{ServiceCode: "svc1", AuthKey: "secretA", Status: StatusActive})
	store := NewBreakerStore(inner, DefaultBreakerConfig(), nil)

	record, err := store.Lookup(context.Background(), "svc1", "secretA", StatusActive)
	require.NoError(t, err)
	assert.Equal(t, "svc1", record.ServiceCode)

	_, err = store.Lookup(context.Background(), "svc1", "wrong", StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBreakerStoreMissDoesNotTrip(t *testing.T) {
	t.Parallel()

	inner := NewMemoryStore()
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 2
	store := NewBreakerStore(inner, cfg, nil)

	for i := 0; i < 10; i++ {
		_, err := store.Lookup(context.Background(), "svc", "key", StatusActive)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStoreTripsOnFailures(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Minute
	store := NewBreakerStore(&failingStore{}, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := store.Lookup(context.Background(), "svc", "key", StatusActive)
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, store.State())

	// Open breaker fails fast with the store-unavailable sentinel.
	_, err := store.Lookup(context.Background(), "svc", "key", StatusActive)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestBreakerStorePingClose(t *testing.T) {
	t.Parallel()

	store := NewBreakerStore(NewMemoryStore(), nil, nil)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}
