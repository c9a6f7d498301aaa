// Package main is the entry point for the request-authentication gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vyrodovalexey/authgw/internal/audit"
	"github.com/vyrodovalexey/authgw/internal/auth"
	"github.com/vyrodovalexey/authgw/internal/auth/session"
	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/credential"
	"github.com/vyrodovalexey/authgw/internal/middleware"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		logger.Fatal("failed to load configuration",
			observability.String("path", flags.configPath),
			observability.Error(err),
		)
	}

	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

func printVersion() {
	fmt.Printf("authgw %s (commit %s, built %s)\n", version, gitCommit, buildTime)
}

// initLogger creates the process logger from flags.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	observability.SetGlobalLogger(logger)
	return logger
}

// run wires the gateway together and blocks until shutdown.
func run(cfg *config.Config, configPath string, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := buildStore(cfg, registry, logger)
	if err != nil {
		logger.Fatal("failed to initialize credential store",
			observability.Error(err),
		)
	}
	defer func() { _ = store.Close() }()

	auditLogger := buildAuditLogger(cfg, registry, logger)
	atomicAudit := audit.NewAtomicLogger(auditLogger)
	defer func() { _ = atomicAudit.Close() }()

	watcher := startConfigWatcher(ctx, configPath, registry, atomicAudit, logger)
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	routes, err := buildRoutes(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to initialize auth strategies",
			observability.Error(err),
		)
	}

	extractor := middleware.NewClientIPExtractor(cfg.ClientIP.TrustedProxies)
	gateway := auth.NewGateway(routes,
		auth.WithGatewayLogger(logger),
		auth.WithGatewayAuditLogger(atomicAudit),
		auth.WithGatewayMetrics(auth.NewMetricsWithRegisterer("authgw", registry)),
		auth.WithGatewayClientIPResolver(extractor),
	)

	opts := []server.Option{
		server.WithServerLogger(logger),
		server.WithServerAuditLogger(atomicAudit),
		server.WithServerStore(store),
		server.WithServerRegistry(registry),
		server.WithServerBuildInfo(server.BuildInfo{
			Version:   version,
			GitCommit: gitCommit,
			BuildTime: buildTime,
		}),
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
			middleware.WithRateLimiterLogger(logger),
			middleware.WithRateLimiterExtractor(extractor),
		)
		defer limiter.Stop()
		opts = append(opts, server.WithServerRateLimiter(limiter))
	}

	srv := server.New(&server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, gateway, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("gateway started",
		observability.Int("port", cfg.Server.Port),
		observability.String("store", cfg.Store.Type),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal",
			observability.String("signal", sig.String()),
		)
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed",
				observability.Error(err),
			)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed",
			observability.Error(err),
		)
	}
}

// buildStore creates the credential store selected by configuration,
// breaker-wrapped when enabled.
func buildStore(cfg *config.Config, registry *prometheus.Registry, logger observability.Logger) (credential.Store, error) {
	metrics := credential.NewMetricsWithRegisterer("authgw", registry)

	var store credential.Store
	switch cfg.Store.Type {
	case config.StoreMemory:
		memory := credential.NewMemoryStore()
		memory.LoadRecords(cfg.Store.Records)
		store = memory

	case config.StoreRedis:
		store = credential.NewRedisStore(&cfg.Store.Redis,
			credential.WithRedisLogger(logger),
			credential.WithRedisMetrics(metrics),
		)

	case config.StoreVault:
		vaultStore, err := credential.NewVaultStore(&cfg.Store.Vault,
			credential.WithVaultLogger(logger),
			credential.WithVaultMetrics(metrics),
		)
		if err != nil {
			return nil, err
		}
		store = vaultStore

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	if cfg.Store.Breaker.Enabled {
		store = credential.NewBreakerStore(store, &cfg.Store.Breaker, logger)
	}

	return store, nil
}

// buildAuditLogger creates an audit logger from the current configuration.
func buildAuditLogger(cfg *config.Config, registry *prometheus.Registry, logger observability.Logger) audit.Logger {
	auditCfg := cfg.Audit
	if auditCfg.ServerPort == 0 {
		auditCfg.ServerPort = cfg.Server.Port
	}

	auditLogger, err := audit.NewLogger(&auditCfg,
		audit.WithLoggerLogger(logger),
		audit.WithLoggerMetrics(audit.NewMetricsWithRegisterer("authgw", registry)),
	)
	if err != nil {
		logger.Error("failed to initialize audit logger, auditing disabled",
			observability.Error(err),
		)
		return audit.NewNopLogger()
	}
	return auditLogger
}

// startConfigWatcher watches the config file and hot-swaps the audit
// logger when it changes. Returns nil when no config file is in use.
func startConfigWatcher(
	ctx context.Context,
	configPath string,
	registry *prometheus.Registry,
	atomicAudit *audit.AtomicLogger,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		previous := atomicAudit.Swap(buildAuditLogger(updated, registry, logger))
		_ = previous.Close()
		logger.Info("audit logger reloaded")
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable",
			observability.Error(err),
		)
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start",
			observability.Error(err),
		)
		return nil
	}

	return watcher
}

// buildRoutes turns the configured routing table into strategy routes.
func buildRoutes(ctx context.Context, cfg *config.Config, store credential.Store, logger observability.Logger) (auth.Routes, error) {
	var sessionStrategy auth.Strategy

	routes := make(auth.Routes, 0, len(cfg.Auth.Routes))
	for _, route := range cfg.Auth.Routes {
		var strategy auth.Strategy

		switch route.Strategy {
		case config.StrategyServiceCredential:
			strategy = auth.NewServiceCredentialStrategy(store, cfg.Auth.Service,
				auth.WithServiceCredentialLogger(logger),
			)

		case config.StrategyAPIKey:
			strategy = auth.NewAPIKeyStrategy(cfg.Auth.APIKey,
				auth.WithAPIKeyLogger(logger),
			)

		case config.StrategySession:
			if sessionStrategy == nil {
				validator, err := session.NewJWTValidator(ctx, &cfg.Auth.Session,
					session.WithValidatorLogger(logger),
				)
				if err != nil {
					return nil, err
				}
				sessionStrategy = auth.NewSessionStrategy(validator,
					auth.WithSessionLogger(logger),
				)
			}
			strategy = sessionStrategy

		default:
			return nil, fmt.Errorf("unknown strategy %q", route.Strategy)
		}

		routes = append(routes, auth.Route{Prefix: route.Prefix, Strategy: strategy})
	}

	return routes, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
