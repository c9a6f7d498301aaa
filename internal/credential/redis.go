package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// RedisConfig holds configuration for the Redis-backed credential store.
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`

	// Prefix is prepended to service codes to form the Redis key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Connection pool settings.
	PoolSize     int `json:"poolSize,omitempty" yaml:"poolSize,omitempty"`
	MinIdleConns int `json:"minIdleConns,omitempty" yaml:"minIdleConns,omitempty"`
	MaxRetries   int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`

	// Timeouts.
	DialTimeout  time.Duration `json:"dialTimeout,omitempty" yaml:"dialTimeout,omitempty"`
	ReadTimeout  time.Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout time.Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		Prefix:       "cred:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore implements Store using Redis. Each record is stored as a JSON
// value under <prefix><serviceCode>.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	logger  observability.Logger
	metrics *Metrics
}

// RedisStoreOption is a functional option for the Redis store.
type RedisStoreOption func(*RedisStore)

// WithRedisLogger sets the logger for the Redis store.
func WithRedisLogger(logger observability.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithRedisMetrics sets the metrics for the Redis store.
func WithRedisMetrics(metrics *Metrics) RedisStoreOption {
	return func(s *RedisStore) {
		s.metrics = metrics
	}
}

// NewRedisStore creates a new Redis-backed credential store.
func NewRedisStore(config *RedisConfig, opts ...RedisStoreOption) *RedisStore {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.Prefix == "" {
		config.Prefix = "cred:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	s := &RedisStore{
		client: client,
		prefix: config.Prefix,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Lookup performs an exact-match lookup of a credential record.
func (s *RedisStore) Lookup(ctx context.Context, serviceCode, authKey string, status Status) (*Record, error) {
	start := time.Now()

	record, err := s.get(ctx, serviceCode)
	if err != nil {
		s.metrics.RecordLookup("redis", lookupResult(err), time.Since(start))
		return nil, err
	}

	if !record.matches(authKey, status) {
		s.metrics.RecordLookup("redis", "miss", time.Since(start))
		return nil, ErrNotFound
	}

	s.metrics.RecordLookup("redis", "hit", time.Since(start))
	return record, nil
}

// get fetches and decodes the record for a service code.
func (s *RedisStore) get(ctx context.Context, serviceCode string) (*Record, error) {
	data, err := s.client.Get(ctx, s.prefix+serviceCode).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("redis credential fetch failed",
			observability.String("serviceCode", serviceCode),
			observability.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Error("malformed credential record",
			observability.String("serviceCode", serviceCode),
			observability.Error(err),
		)
		return nil, fmt.Errorf("decode credential record: %w", err)
	}

	return &record, nil
}

// Ping verifies connectivity with Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
