package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/shopledger/internal/adapter/http"
	"github.com/iho/shopledger/internal/adapter/http/handler"
	"github.com/iho/shopledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/shopledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/shopledger/internal/adapter/repository/redis"
	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/auth"
	"github.com/iho/shopledger/internal/infrastructure/config"
	"github.com/iho/shopledger/internal/infrastructure/eventpublisher"
	"github.com/iho/shopledger/internal/infrastructure/logger"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
	"github.com/iho/shopledger/internal/infrastructure/postgres"
	"github.com/iho/shopledger/internal/infrastructure/redis"
	"github.com/iho/shopledger/internal/usecase"
)

const (
	streamMaxLen        = 100_000
	rateLimiterIdleTime = time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = time.RFC3339Nano
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

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
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, redis.Config{
		URL:         cfg.RedisURL,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	partyRepo := postgresRepo.NewPartyRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	seqRepo := postgresRepo.NewSequenceRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier().WithMetrics(m)

	// Initialize use cases
	auditUC := usecase.NewAuditUseCase(auditRepo, idGen, m)
	partyUC := usecase.NewPartyUseCase(txManager, partyRepo, seqRepo, outboxRepo, auditUC, idGen, m).
		WithRetrier(retrier)
	entryUC := usecase.NewEntryUseCase(txManager, partyRepo, entryRepo, outboxRepo, auditUC, idGen, m).
		WithRetrier(retrier)
	reconUC := usecase.NewReconciliationUseCase(txManager, partyRepo, entryRepo, m)

	if cfg.CacheEnabled {
		partyCache := usecase.NewPartyCache(redisRepo.NewCache(redisClient), cfg.PartyCacheTTL, m)
		partyUC.WithCache(partyCache)
		entryUC.WithCache(partyCache)
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
		go cleanupLimiters(ctx, rateLimiter)
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ShopHandler:            handler.NewPartyHandler(domain.PartyKindShop, partyUC, entryUC),
		CustomerHandler:        handler.NewPartyHandler(domain.PartyKindCustomer, partyUC, entryUC),
		LoanHandler:            handler.NewEntryHandler(domain.EntryKindLoan, entryUC),
		PaymentHandler:         handler.NewEntryHandler(domain.EntryKindPayment, entryUC),
		ShopReconciliation:     handler.NewReconciliationHandler(domain.PartyKindShop, reconUC),
		CustomerReconciliation: handler.NewReconciliationHandler(domain.PartyKindCustomer, reconUC),
		AuditHandler:           handler.NewAuditHandler(auditUC),
		HealthHandler:          handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:       idempotencyStore,
		IdempotencyTTL:         cfg.IdempotencyTTL,
		RateLimiter:            rateLimiter,
		JWTManager:             jwtManager,
		DefaultActor:           cfg.DefaultActor,
		Logger:                 appLogger,
		Metrics:                m,
		MetricsHandler:         promhttp.Handler(),
		CORSAllowedOrigins:     cfg.CORSAllowedOrigins,
	})

	if cfg.OutboxEnabled {
		var sink eventpublisher.Publisher = redisRepo.NewStreamPublisher(redisClient, cfg.EventStream, streamMaxLen)
		if cfg.EventSink == "log" {
			sink = eventpublisher.NewLogPublisher(appLogger)
		}

		publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  sink,
			Logger:     &appLogger,
			Metrics:    m,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
		})
		go func() {
			if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(rateLimiterIdleTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(rateLimiterIdleTime)
		}
	}
}
