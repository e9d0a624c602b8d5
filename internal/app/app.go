package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/ledger-engine/internal/api"
	"github.com/ayo6706/ledger-engine/internal/api/handler"
	"github.com/ayo6706/ledger-engine/internal/config"
	"github.com/ayo6706/ledger-engine/internal/db"
	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/events"
	"github.com/ayo6706/ledger-engine/internal/idempotency"
	"github.com/ayo6706/ledger-engine/internal/memstore"
	"github.com/ayo6706/ledger-engine/internal/observability"
	"github.com/ayo6706/ledger-engine/internal/repository"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/ayo6706/ledger-engine/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	observers := service.Observers{
		service.NewAuditLogger(logger),
		service.MetricsObserver{},
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), 0)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("event publisher close failed", zap.Error(err))
			}
		}()
		observers = append(observers, publisher)
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	txSvc := service.NewTransactionService(store, observers)
	accountSvc := service.NewAccountService(store, observers).WithMaxAccounts(cfg.MaxAccountsPerClient)

	var redisCmd redis.Cmdable
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		redisCmd = redisClient
		txSvc.WithReplayCache(idempotency.NewCache(redisClient, cfg.ReplayCacheTTL))
		logger.Info("replay cache enabled", zap.Duration("ttl", cfg.ReplayCacheTTL))
	}

	reconciler := service.NewReconciliationService(store.Reader()).WithStalePendingAfter(cfg.StalePendingAfter)
	reconciliationWorker := worker.NewReconciliationWorker(reconciler).WithInterval(cfg.ReconciliationInterval)
	stopWorker := reconciliationWorker.Run(ctx)

	router := api.NewRouter(cfg, logger, txSvc, accountSvc, pinger, redisCmd)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			stopWorker()
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping reconciliation worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore returns the configured ledger store, a readiness pinger (nil for
// the memory store) and a release function.
func openStore(ctx context.Context, cfg *config.Config) (domain.Store, handler.Pinger, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		zap.L().Warn("using in-memory store, data is lost on restart")
		return memstore.New().WithLockTimeout(cfg.LockTimeout), nil, func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	store := repository.NewStore(pool).WithLockTimeout(cfg.LockTimeout)
	return store, store, pool.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
