// Package server provides the gateway's HTTP server: the gin engine with
// its middleware chain, the authentication filter mount, and the built-in
// health, version and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/authgw/internal/audit"
	"github.com/vyrodovalexey/authgw/internal/auth"
	"github.com/vyrodovalexey/authgw/internal/credential"
	"github.com/vyrodovalexey/authgw/internal/middleware"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// ginModeOnce ensures gin.SetMode is called once.
var ginModeOnce sync.Once

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// BuildInfo describes the running binary, reported by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

// Server is the gateway HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *Config
	gateway    *auth.Gateway
	store      credential.Store
	logger     observability.Logger
	audit      audit.Logger
	registry   *prometheus.Registry
	limiter    *middleware.RateLimiter
	buildInfo  BuildInfo
	mu         sync.Mutex
	running    bool
}

// Option is a functional option for the server.
type Option func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerAuditLogger sets the audit logger used by the recovery handler.
func WithServerAuditLogger(l audit.Logger) Option {
	return func(s *Server) {
		s.audit = l
	}
}

// WithServerStore sets the credential store checked by /healthz.
func WithServerStore(store credential.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithServerRegistry sets the Prometheus registry served at /metrics.
func WithServerRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithServerRateLimiter enables the rate limiting middleware.
func WithServerRateLimiter(limiter *middleware.RateLimiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithServerBuildInfo sets the build metadata reported by /version.
func WithServerBuildInfo(info BuildInfo) Option {
	return func(s *Server) {
		s.buildInfo = info
	}
}

// New creates the gateway server around the dispatch filter.
func New(config *Config, gateway *auth.Gateway, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:    gin.New(),
		config:    config,
		gateway:   gateway,
		logger:    observability.NopLogger(),
		audit:     audit.NewNopLogger(),
		buildInfo: BuildInfo{Version: "dev", GitCommit: "unknown", BuildTime: "unknown"},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(s.recovery())
	s.engine.Use(wrapMiddleware(middleware.RequestID()))
	if s.limiter != nil {
		s.engine.Use(wrapMiddleware(middleware.RateLimit(s.limiter)))
	}
	s.engine.Use(s.authFilter())

	s.registerBuiltinRoutes()

	// Everything without a registered route is denied: the gateway sits
	// in front of an authorization layer that default-denies.
	s.engine.NoRoute(func(c *gin.Context) {
		auth.WriteDenial(c.Writer, auth.ErrCredentialNotFound)
	})

	return s
}

// Engine returns the underlying gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// authFilter mounts the dispatch filter as gin middleware.
func (s *Server) authFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.gateway.Dispatch(c.Writer, c.Request) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// wrapMiddleware adapts net/http middleware to gin. When the middleware
// short-circuits without calling next, the gin chain is aborted.
func wrapMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		proceeded := false
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			proceeded = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !proceeded {
			c.Abort()
		}
	}
}

// registerBuiltinRoutes registers health, version and metrics endpoints.
func (s *Server) registerBuiltinRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/version", s.handleVersion)

	var handler http.Handler
	if s.registry != nil {
		handler = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	} else {
		handler = promhttp.Handler()
	}
	s.engine.GET("/metrics", gin.WrapH(handler))
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed",
				observability.Error(err),
			)
			auth.WriteEnvelope(c.Writer, http.StatusServiceUnavailable, auth.NewErrorEnvelope(auth.ErrInternal))
			return
		}
	}
	auth.WriteEnvelope(c.Writer, http.StatusOK, auth.NewSuccessEnvelope(map[string]string{"status": "ok"}))
}

func (s *Server) handleVersion(c *gin.Context) {
	auth.WriteEnvelope(c.Writer, http.StatusOK, auth.NewSuccessEnvelope(s.buildInfo))
}

// Start runs the server until it is stopped. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
