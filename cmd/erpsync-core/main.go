package main

import (
	"context"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreline-labs/erpsync-core/internal/adapters/driven/erp"
	"github.com/coreline-labs/erpsync-core/internal/adapters/driven/postgres"
	redisadapter "github.com/coreline-labs/erpsync-core/internal/adapters/driven/redis"
	httpserver "github.com/coreline-labs/erpsync-core/internal/adapters/driving/http"
	"github.com/coreline-labs/erpsync-core/internal/config"
	"github.com/coreline-labs/erpsync-core/internal/core/services"
	"github.com/coreline-labs/erpsync-core/internal/metrics"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("erpsync-core starting", "version", version)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// PostgreSQL
	dbCfg := postgres.DefaultConfig(cfg.DatabaseURL)
	dbCfg.MaxOpenConns = cfg.DatabaseMaxConns
	db, err := postgres.Connect(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	logger.Info("database connected and schema initialized")

	encryptor, err := postgres.NewSecretEncryptorFromSecret(cfg.EncryptionSecret)
	if err != nil {
		return err
	}

	tenantStore := postgres.NewTenantStore(db, encryptor)
	mirrorStore := postgres.NewMirrorStore(postgres.MirrorStoreConfig{
		DB:     db,
		Logger: logger,
	})
	syncLogStore := postgres.NewSyncLogStore(db)

	// Redis
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	tokenCache := redisadapter.NewTokenCache(redisClient)
	lock := redisadapter.NewLock(redisClient)
	if err := lock.Ping(ctx); err != nil {
		return err
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)

	// ERP gateway
	gateway := erp.NewClient(erp.ClientConfig{
		ProductionURL: cfg.ERPProductionURL,
		SandboxURL:    cfg.ERPSandboxURL,
		Timeout:       cfg.ERPTimeout,
		PageSize:      cfg.ERPPageSize,
		Logger:        logger,
	})

	// Core services
	syncMetrics := metrics.NewSyncMetrics()

	tokens := services.NewTokenManager(services.TokenManagerConfig{
		Tenants: tenantStore,
		Cache:   tokenCache,
		Lock:    lock,
		Gateway: gateway,
		Logger:  logger,
	})
	fetcher := services.NewFetcher(services.FetcherConfig{
		Gateway: gateway,
		Tokens:  tokens,
		Logger:  logger,
	})
	reconciler := services.NewReconciler(services.ReconcilerConfig{
		Store:  mirrorStore,
		Logger: logger,
	})
	pipeline := services.NewPipeline(services.PipelineConfig{
		Tokens:     tokens,
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Logs:       syncLogStore,
		Metrics:    syncMetrics,
		Logger:     logger,
	})
	scheduler := services.NewScheduler(services.SchedulerConfig{
		Tenants:      tenantStore,
		Pipeline:     pipeline,
		Metrics:      syncMetrics,
		Logger:       logger,
		PollInterval: cfg.SchedulerPollInterval,
	})

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		logger.Info("stopping scheduler, draining in-flight sync")
		scheduler.Stop()
	}()

	// HTTP server. Start blocks until a shutdown signal arrives.
	server := httpserver.NewServer(httpserver.Config{
		Host:    cfg.HTTPHost,
		Port:    cfg.HTTPPort,
		Version: version,
		Logger:  logger,
	}, scheduler, syncLogStore, db, tokenCache)

	return server.Start()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "erpsync-core")
}
