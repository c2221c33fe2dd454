package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/badbank/internal/adapter/http"
	"github.com/iho/badbank/internal/adapter/http/handler"
	"github.com/iho/badbank/internal/adapter/http/middleware"
	"github.com/iho/badbank/internal/adapter/lock"
	postgresRepo "github.com/iho/badbank/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/badbank/internal/adapter/repository/redis"
	"github.com/iho/badbank/internal/infrastructure/auth"
	"github.com/iho/badbank/internal/infrastructure/config"
	"github.com/iho/badbank/internal/infrastructure/eventpublisher"
	"github.com/iho/badbank/internal/infrastructure/logger"
	"github.com/iho/badbank/internal/infrastructure/metrics"
	"github.com/iho/badbank/internal/infrastructure/postgres"
	"github.com/iho/badbank/internal/infrastructure/redis"
	"github.com/iho/badbank/internal/usecase"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger
	zerolog.DefaultContextLogger = &appLogger

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
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
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	appLogger.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	appLogger.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool, postgresRepo.WithLockTimeout(cfg.DBLockTimeout))
	accountRepo := postgresRepo.NewAccountRepository(pool)
	txRepo := postgresRepo.NewTransactionRepository(pool)
	userRepo := postgresRepo.NewUserRepository(pool)
	outboxRepo := newOutboxRepository(cfg, pool)
	retrier := postgresRepo.NewRetrier(
		postgresRepo.WithMaxRetries(cfg.MaxRetries),
		postgresRepo.WithRetrierLogger(appLogger),
	)
	locker := newLocker(cfg, redisClient, appLogger)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	// Initialize use cases
	balanceUC := usecase.NewBalanceUseCase(
		txManager, accountRepo, txRepo, outboxRepo, locker, retrier, postgresRepo.NewULIDGenerator(),
		usecase.WithMetrics(m),
		usecase.WithLockWait(cfg.LockWaitTimeout),
	)
	userUC := usecase.NewUserUseCase(
		txManager, userRepo, accountRepo, outboxRepo,
		auth.NewBcryptHasher(cfg.BcryptCost), jwtManager,
		postgresRepo.NewUUIDGenerator(), postgresRepo.NewULIDGenerator(), m,
	)
	consistencyUC := usecase.NewConsistencyUseCase(accountRepo, txRepo, m)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst,
		middleware.WithRejectHook(m.RateLimitHits.Inc))
	go cleanupLimiters(ctx, rateLimiter)

	if cfg.EventsEnabled {
		publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  newEventSink(cfg, redisClient, appLogger),
			Logger:     appLogger,
			Metrics:    m,
			Interval:   cfg.EventsInterval,
			Retention:  cfg.EventsRetention,
		})
		go func() {
			if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userUC),
		BalanceHandler: handler.NewBalanceHandler(balanceUC),
		LedgerHandler:  handler.NewLedgerHandler(consistencyUC),
		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pool,
			"redis":    redisPinger(redisClient),
		}),
		TokenVerifier:    jwtManager,
		IdempotencyStore: redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		HTTPMetrics:      middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:           appLogger,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Str("lock_backend", cfg.LockBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// newLocker picks the per-user lock implementation. The memory locker only
// serializes requests within this process.
func newLocker(cfg *config.Config, client *goredis.Client, l zerolog.Logger) usecase.Locker {
	if cfg.LockBackend == config.LockBackendRedis {
		return redisRepo.NewLocker(client, redisRepo.WithLockTTL(cfg.LockTTL), redisRepo.WithLockerLogger(l))
	}
	return lock.NewMemoryLocker()
}

func newOutboxRepository(cfg *config.Config, pool *pgxpool.Pool) usecase.OutboxRepository {
	if !cfg.EventsEnabled {
		return postgresRepo.NewNullOutboxRepository()
	}
	return postgresRepo.NewOutboxRepository(pool)
}

func newEventSink(cfg *config.Config, client *goredis.Client, l zerolog.Logger) eventpublisher.Publisher {
	if cfg.EventsPublisher == config.EventsPublisherRedis {
		return redisRepo.NewStreamPublisher(client, cfg.EventsStream, 0)
	}
	return eventpublisher.NewLogPublisher(l)
}

func redisPinger(client *goredis.Client) handler.Pinger {
	return handler.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(time.Hour)
		}
	}
}
