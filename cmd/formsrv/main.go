// Package main is the entry point for the formflow server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/formflow/formflow/internal/audit"
	"github.com/formflow/formflow/internal/config"
	"github.com/formflow/formflow/internal/definition"
	"github.com/formflow/formflow/internal/engine"
	"github.com/formflow/formflow/internal/filter"
	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/internal/ticket"
	"github.com/formflow/formflow/internal/transport"
	"github.com/formflow/formflow/internal/vault"
	"github.com/formflow/formflow/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "formflow", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Process definitions: load, validate, build the registry.
	loader := definition.NewLoader()
	processes, err := loader.LoadAll(cfg.Definitions.Directories)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}

	validator := definition.NewValidator()
	if verrs := validator.Validate(processes); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error",
				zap.String("path", ve.Path),
				zap.String("code", ve.Code),
				zap.String("message", ve.Message),
			)
		}
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return 1
	}

	registry := definition.NewRegistry(processes)
	metrics.SetDefinitionsLoaded(float64(registry.Count()))

	// Restricted-field encryption.
	encryption, err := vault.NewAESServiceFromEnv(cfg.Encryption.KeyEnv)
	if err != nil {
		logger.Error("encryption initialization failed", zap.Error(err))
		return 1
	}

	// Restricted-value access tracking.
	tracker, trackerCloser, err := buildTracker(ctx, cfg.Audit, logger)
	if err != nil {
		logger.Error("audit tracker initialization failed", zap.Error(err))
		return 1
	}
	if trackerCloser != nil {
		defer trackerCloser()
	}

	// Ticket store and manager.
	store, storeCloser, err := buildTicketStore(ctx, cfg.Tickets.Store, logger)
	if err != nil {
		logger.Error("ticket store initialization failed", zap.Error(err))
		return 1
	}
	if storeCloser != nil {
		defer storeCloser()
	}
	tickets := ticket.NewManager(store, registry, cfg.Tickets.TTL, logger, metrics)

	// Process engine.
	processEngine, instances, err := buildEngine(cfg.Engine, registry)
	if err != nil {
		logger.Error("engine initialization failed", zap.Error(err))
		return 1
	}

	builder := filter.NewBuilder(encryption, tracker, logger, metrics, nil)

	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	readiness := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return registry.Count() > 0 },
	}
	if hc, ok := store.(observability.HealthChecker); ok {
		readiness.TicketStore = hc
	}
	if hc, ok := tracker.(observability.HealthChecker); ok {
		readiness.AuditSink = hc
	}
	if hc, ok := processEngine.(observability.HealthChecker); ok {
		readiness.ProcessEngine = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Tickets:      tickets,
		Engine:       processEngine,
		Instances:    instances,
		Encryption:   encryption,
		Builder:      builder,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Readiness:    readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if cfg.Definitions.HotReload {
		go runDefinitionReloader(bgCtx, cfg.Definitions, loader, validator, registry, metrics, logger)
	}
	if pg, ok := store.(*ticket.PgStore); ok {
		go runTicketSweeper(bgCtx, pg, logger)
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("definitions", registry.Count()),
		zap.String("engine_mode", cfg.Engine.Mode),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildTracker creates the access tracker named by the audit sink config.
func buildTracker(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (model.AccessTracker, func(), error) {
	switch cfg.Sink {
	case "log", "":
		return audit.NewLogTracker(logger), nil, nil
	case "postgres":
		pool, err := openPgPool(ctx, cfg.DSNEnv, 0, 0, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("audit sink: %w", err)
		}
		return audit.NewPgTracker(pool, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audit sink: %q", cfg.Sink)
	}
}

// buildTicketStore creates the ticket store named by the driver config.
func buildTicketStore(ctx context.Context, cfg config.TicketStoreConfig, logger *zap.Logger) (ticket.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory ticket store")
		return ticket.NewMemoryStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("ticket store: %s environment variable not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ticket store: ping: %w", err)
		}
		return ticket.NewRedisStore(client), func() { client.Close() }, nil
	case "postgres":
		pool, err := openPgPool(ctx, cfg.DSNEnv, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
		if err != nil {
			return nil, nil, fmt.Errorf("ticket store: %w", err)
		}
		return ticket.NewPgStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ticket store driver: %q", cfg.Driver)
	}
}

// buildEngine creates the process engine and the instance repository backing
// it. The embedded engine keeps instances itself; remote mode pairs the HTTP
// client with a local instance cache.
func buildEngine(cfg config.EngineConfig, registry *definition.Registry) (model.ProcessEngine, model.InstanceRepository, error) {
	switch cfg.Mode {
	case "embedded", "":
		e := engine.NewEmbedded(registry)
		return e, e, nil
	case "remote":
		if cfg.BaseURL == "" {
			return nil, nil, fmt.Errorf("remote engine: base_url is required")
		}
		return engine.NewRemote(cfg.BaseURL, cfg.Timeout), engine.NewInstanceCache(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported engine mode: %q", cfg.Mode)
	}
}

func openPgPool(ctx context.Context, dsnEnv string, maxOpen, maxIdle int, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		return nil, fmt.Errorf("%s environment variable not set", dsnEnv)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if maxOpen > 0 {
		poolCfg.MaxConns = int32(maxOpen)
	}
	if maxIdle > 0 {
		poolCfg.MinConns = int32(maxIdle)
	}
	if maxLifetime > 0 {
		poolCfg.MaxConnLifetime = maxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// runDefinitionReloader polls the definition directories and swaps the
// registry when the combined checksum changes. Invalid definitions leave the
// current snapshot untouched.
func runDefinitionReloader(ctx context.Context, cfg config.DefinitionsConfig, loader *definition.Loader, validator *definition.Validator, registry *definition.Registry, metrics *observability.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processes, err := loader.LoadAll(cfg.Directories)
			if err != nil {
				logger.Error("definition reload failed", zap.Error(err))
				metrics.RecordDefinitionReload("error")
				continue
			}
			if verrs := validator.Validate(processes); len(verrs) > 0 {
				logger.Error("definition reload rejected", zap.Int("errors", len(verrs)))
				metrics.RecordDefinitionReload("invalid")
				continue
			}

			before := registry.Checksum()
			registry.Replace(processes)
			if registry.Checksum() == before {
				continue
			}
			metrics.RecordDefinitionReload("ok")
			metrics.SetDefinitionsLoaded(float64(registry.Count()))
			logger.Info("definitions reloaded", zap.Int("count", registry.Count()))
		}
	}
}

// runTicketSweeper periodically removes expired rows from the postgres
// ticket store. Redis and memory stores expire entries themselves.
func runTicketSweeper(ctx context.Context, store *ticket.PgStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Error("ticket sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Debug("expired tickets removed", zap.Int64("count", deleted))
			}
		}
	}
}
