package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// BreakerConfig holds circuit breaker settings for the credential store.
type BreakerConfig struct {
	// Enabled enables the circuit breaker decorator.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxRequests is the number of probe requests allowed in half-open state.
	MaxRequests uint32 `json:"maxRequests,omitempty" yaml:"maxRequests,omitempty"`

	// Interval is the cyclic period for clearing counts in closed state.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ConsecutiveFailures is the failure count that trips the breaker.
	ConsecutiveFailures uint32 `json:"consecutiveFailures,omitempty" yaml:"consecutiveFailures,omitempty"`
}

// DefaultBreakerConfig returns a BreakerConfig with default values.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Enabled:             true,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore decorates a Store with a circuit breaker. When the breaker is
// open, lookups fail immediately with ErrStoreUnavailable, which the gateway
// maps to a denial (fail-closed). Not-found results do not count as
// failures; only store errors trip the breaker.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// NewBreakerStore wraps a store with a circuit breaker.
func NewBreakerStore(inner Store, config *BreakerConfig, logger observability.Logger) *BreakerStore {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	failures := config.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	s := &BreakerStore{
		inner:  inner,
		logger: logger,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "credential-store",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("credential store breaker state change",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return s
}

// Lookup performs an exact-match lookup through the breaker.
func (s *BreakerStore) Lookup(ctx context.Context, serviceCode, authKey string, status Status) (*Record, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		record, err := s.inner.Lookup(ctx, serviceCode, authKey, status)
		if errors.Is(err, ErrNotFound) {
			// A miss is a valid answer, not a store failure.
			return nil, nil
		}
		return record, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, ErrNotFound
	}

	record, ok := result.(*Record)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// Ping verifies connectivity with the underlying store.
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the underlying store.
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// State returns the current breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

// Ensure BreakerStore implements Store.
var _ Store = (*BreakerStore)(nil)
