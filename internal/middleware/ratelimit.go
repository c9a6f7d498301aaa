package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/authgw/internal/auth"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// defaultClientTTL is how long an idle client keeps its limiter before the
// cleanup loop evicts it.
const defaultClientTTL = 10 * time.Minute

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RPS is the sustained requests-per-second budget per client IP.
	RPS int `yaml:"rps,omitempty" json:"rps,omitempty"`

	// Burst is the burst allowance per client IP.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// clientLimiter pairs a token bucket with its last access time so idle
// entries can be evicted.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies per-client-IP token bucket rate limiting.
type RateLimiter struct {
	rps       int
	burst     int
	clients   map[string]*clientLimiter
	mu        sync.Mutex
	clientTTL time.Duration
	extractor *ClientIPExtractor
	logger    observability.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// RateLimiterOption is a functional option for the rate limiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithRateLimiterExtractor sets the client IP extractor.
func WithRateLimiterExtractor(extractor *ClientIPExtractor) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.extractor = extractor
	}
}

// WithRateLimiterClientTTL sets the idle eviction TTL, mainly for tests.
func WithRateLimiterClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.clientTTL = ttl
	}
}

// NewRateLimiter creates a per-client rate limiter and starts its idle
// eviction loop. Stop must be called to release it.
func NewRateLimiter(rps, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		rps:       rps,
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		clientTTL: defaultClientTTL,
		extractor: NewClientIPExtractor(nil),
		logger:    observability.NopLogger(),
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(rl)
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether the client may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	now := time.Now()

	rl.mu.Lock()
	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
		}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// cleanupLoop periodically evicts limiters idle longer than the TTL.
func (rl *RateLimiter) cleanupLoop() {
	interval := rl.clientTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	cutoff := time.Now().Add(-rl.clientTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.clients {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// Stop terminates the eviction loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// RateLimit returns middleware that rejects over-budget requests with a
// 429 envelope.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := rl.extractor.Extract(r)

			if !rl.Allow(clientIP) {
				rl.logger.Warn("rate limit exceeded",
					observability.String("clientIp", clientIP),
					observability.String("path", r.URL.Path),
				)
				auth.WriteEnvelope(w, http.StatusTooManyRequests, auth.NewErrorEnvelope(auth.ErrInternal))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
