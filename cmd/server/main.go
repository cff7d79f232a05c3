package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/creditledger/internal/adapter/http"
	"github.com/iho/creditledger/internal/adapter/http/handler"
	"github.com/iho/creditledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/creditledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/creditledger/internal/adapter/repository/redis"
	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/infrastructure/config"
	"github.com/iho/creditledger/internal/infrastructure/logger"
	"github.com/iho/creditledger/internal/infrastructure/metrics"
	"github.com/iho/creditledger/internal/infrastructure/postgres"
	"github.com/iho/creditledger/internal/infrastructure/redis"
	"github.com/iho/creditledger/internal/infrastructure/scheduler"
	"github.com/iho/creditledger/internal/usecase"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "creditledger",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClientWithConfig(ctx, redis.ClientConfig{
		URL:      cfg.RedisURL,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// HTTP middleware metrics live on the default registry, so reconciliation
	// metrics join them there and /metrics serves both.
	recorder := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	entryRepo := postgresRepo.NewLedgerEntryRepository(pool)
	userRepo := postgresRepo.NewUserRepository(pool)

	reconcileUC := usecase.NewReconciliationUseCase(usecase.ReconciliationConfig{
		EntryRepo:        entryRepo,
		UserRepo:         userRepo,
		TxManager:        postgresRepo.NewTxManager(pool),
		Retrier:          postgresRepo.NewRetrier(log, cacheWriteRetryPolicy(cfg)),
		Locker:           redisRepo.NewUserLocker(redisClient, cfg.ReconcileLockTTL),
		Tracker:          redisRepo.NewReconcileTracker(redisClient, trackerTTL(cfg.ReconcileMinInterval)),
		AuditRepo:        postgresRepo.NewAuditRepository(pool),
		Publisher:        redisRepo.NewInconsistencyPublisher(redisClient, cfg.InconsistencyChannel),
		IDGen:            postgresRepo.NewULIDGenerator(),
		Metrics:          recorder,
		Logger:           log,
		Validator:        domain.NewBalanceValidator(cfg.ReconcileLifetimeUpperBound),
		Defaults:         cfg.ReconcileDefaults(),
		MinInterval:      cfg.ReconcileMinInterval,
		DefaultBatchSize: cfg.ReconcileBatchSize,
		Workers:          cfg.ReconcileWorkers,
	})
	entryUC := usecase.NewEntryUseCase(entryRepo, userRepo)

	var limiter *middleware.RateLimiter
	if cfg.ReconcileRatePerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.ReconcileRatePerMinute, cfg.ReconcileRateBurst)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ReconciliationHandler: handler.NewReconciliationHandler(reconcileUC),
		UserHandler:           handler.NewUserHandler(reconcileUC, entryUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		Logger:                log,
		RateLimiter:           limiter,
	})

	server := newHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if cfg.ReconcileScheduleInterval > 0 {
		sched := scheduler.New(scheduler.Config{
			Reconciler: reconcileUC,
			Logger:     log,
			Interval:   cfg.ReconcileScheduleInterval,
			BatchSize:  cfg.ReconcileBatchSize,
		})
		g.Go(func() error {
			if err := sched.Start(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(limiterCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Cleanup(limiterCleanupInterval)
				}
			}
		})
	}

	return g.Wait()
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

// trackerTTL keeps reconcile markers long enough for the frequency guard.
func trackerTTL(minInterval time.Duration) time.Duration {
	return max(24*time.Hour, 2*minInterval)
}

func cacheWriteRetryPolicy(cfg *config.Config) postgresRepo.RetryPolicy {
	policy := postgresRepo.DefaultRetryPolicy()
	policy.MaxRetries = cfg.CacheWriteMaxRetries
	policy.MaxElapsedTime = cfg.CacheWriteRetryTimeout
	return policy
}
