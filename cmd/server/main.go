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

	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/coopledger/internal/adapter/http"
	"github.com/iho/coopledger/internal/adapter/http/handler"
	"github.com/iho/coopledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/coopledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/coopledger/internal/adapter/repository/redis"
	"github.com/iho/coopledger/internal/infrastructure/config"
	"github.com/iho/coopledger/internal/infrastructure/eventpublisher"
	"github.com/iho/coopledger/internal/infrastructure/logger"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
	"github.com/iho/coopledger/internal/infrastructure/postgres"
	"github.com/iho/coopledger/internal/infrastructure/redis"
	"github.com/iho/coopledger/internal/infrastructure/scheduler"
	"github.com/iho/coopledger/internal/usecase"
)

const (
	poolStatsInterval        = 15 * time.Second
	rateLimitCleanupInterval = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger.WithComponent(log, "migrator")); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	recordRepo := postgresRepo.NewRecordRepository(pool)
	loanRepo := postgresRepo.NewLoanRepository(pool)
	maturityRepo := postgresRepo.NewMaturityRepository(pool)
	memberRepo := postgresRepo.NewMemberRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	retrier := postgresRepo.NewRetrier(cfg.DBMaxRetries, logger.WithComponent(log, "retrier"))
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	clock := usecase.SystemClock{}

	// Initialize use cases
	recordUC := usecase.NewRecordUseCase(txManager, recordRepo, memberRepo, loanRepo, outboxRepo, cache, idGen, clock,
		logger.WithComponent(log, "records"), m)
	loanUC := usecase.NewLoanUseCase(txManager, loanRepo, recordRepo, memberRepo, recordUC, outboxRepo, auditRepo, cache, idGen, clock,
		logger.WithComponent(log, "loans"), m)
	maturityUC := usecase.NewMaturityUseCase(usecase.MaturityUseCaseConfig{
		TxManager:    txManager,
		MaturityRepo: maturityRepo,
		RecordRepo:   recordRepo,
		MemberRepo:   memberRepo,
		LoanRepo:     loanRepo,
		OutboxRepo:   outboxRepo,
		AuditRepo:    auditRepo,
		Cache:        cache,
		Retrier:      retrier,
		IDGen:        idGen,
		Clock:        clock,
		Logger:       logger.WithComponent(log, "maturity"),
		Metrics:      m,
		Workers:      cfg.MaturityWorkers,
	})
	ledgerUC := usecase.NewLedgerUseCase(recordRepo, memberRepo, clock)
	defaulterUC := usecase.NewDefaulterUseCase(loanRepo, memberRepo, clock, m)
	summaryUC := usecase.NewSummaryUseCase(recordRepo, loanRepo, maturityRepo, memberRepo, cache, cfg.SummaryCacheTTL,
		logger.WithComponent(log, "summary"), m)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(
		handler.PingFunc(pool.Ping),
		handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		RecordHandler:    handler.NewRecordHandler(recordUC),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		LoanHandler:      handler.NewLoanHandler(loanUC),
		MaturityHandler:  handler.NewMaturityHandler(maturityUC),
		ReportHandler:    handler.NewReportHandler(defaulterUC, summaryUC),
		HealthHandler:    healthHandler,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Metrics:          m,
		Logger:           logger.WithComponent(log, "http"),
	})

	// Background workers
	go rateLimiter.RunCleanup(ctx, rateLimitCleanupInterval)
	go postgres.ReportPoolStats(ctx, pool, m, poolStatsInterval)

	publisherLog := logger.WithComponent(log, "outbox")
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(publisherLog),
		Clock:      clock,
		Logger:     publisherLog,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
	go runWorker(ctx, log, "event publisher", publisher.Start)

	if cfg.MaturitySchedulerEnabled {
		maturityScheduler := scheduler.NewMaturityScheduler(scheduler.Config{
			Tenants:  memberRepo,
			Runner:   maturityUC,
			Clock:    clock,
			Logger:   logger.WithComponent(log, "scheduler"),
			Interval: cfg.MaturityScheduleInterval,
		})
		go runWorker(ctx, log, "maturity scheduler", maturityScheduler.Start)
	}

	// Create server
	server := newHTTPServer(cfg, router)

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newHTTPServer builds the API server from cfg.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

// runWorker runs start until ctx is cancelled and logs any other failure.
func runWorker(ctx context.Context, log zerolog.Logger, name string, start func(context.Context) error) {
	if err := start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("worker", name).Msg("background worker stopped")
	}
}
