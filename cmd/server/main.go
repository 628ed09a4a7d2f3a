package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/cashdesk/internal/adapter/http"
	"github.com/iho/cashdesk/internal/adapter/http/handler"
	"github.com/iho/cashdesk/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/cashdesk/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cashdesk/internal/adapter/repository/redis"
	"github.com/iho/cashdesk/internal/adapter/ws"
	"github.com/iho/cashdesk/internal/infrastructure/auth"
	"github.com/iho/cashdesk/internal/infrastructure/config"
	"github.com/iho/cashdesk/internal/infrastructure/logger"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
	"github.com/iho/cashdesk/internal/infrastructure/notifier"
	"github.com/iho/cashdesk/internal/infrastructure/postgres"
	"github.com/iho/cashdesk/internal/infrastructure/redis"
	"github.com/iho/cashdesk/internal/realtime"
	"github.com/iho/cashdesk/internal/scheduler"
	"github.com/iho/cashdesk/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = zl

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool)
	partyRepo := postgresRepo.NewPartyRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	notificationRepo := postgresRepo.NewNotificationRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	cache := redisRepo.NewCache(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	m := metrics.New()

	// Realtime channels
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry, zl)
	router.SetMetrics(m)

	// Coordination engine
	retrier := postgresRepo.NewRetrierWithConfig(cfg.MaxProcessingRetries, cfg.RetryBackoffBase)
	guard := usecase.NewProcessingGuard(retrier)
	guard.SetMetrics(m)

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		TxManager:     txManager,
		Transactions:  transactionRepo,
		Parties:       partyRepo,
		Audits:        auditRepo,
		Notifications: notificationRepo,
		Router:        router,
		Guard:         guard,
		IDGen:         idGen,
		Cache:         cache,
		Metrics:       m,
		Logger:        zl,
	}, usecase.CoordinatorConfig{
		MinDepositAmount:    cfg.MinDepositAmount,
		MinWithdrawalAmount: cfg.MinWithdrawalAmount,
		CommissionPercent:   cfg.CommissionPercent,
	})

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Timeout scheduler, rebuilt from the store on startup
	timeouts := scheduler.New(coordinator, scheduler.Config{
		PendingTimeout:    cfg.PendingTimeout,
		InProgressTimeout: cfg.InProgressTimeout,
	}, slogger)
	timeouts.SetMetrics(m)
	coordinator.SetScheduler(timeouts)
	defer timeouts.Stop()

	if err := timeouts.Recover(ctx, transactionRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to recover timeout timers")
	}

	// Disconnect grace handling
	recovery := realtime.NewRecovery(router, coordinator, auditRepo, idGen, realtime.RecoveryConfig{
		PlayerGrace:  cfg.PlayerGracePeriod,
		CashierGrace: cfg.CashierGracePeriod,
	}, zl)
	recovery.SetMetrics(m)
	defer recovery.Stop()

	// Periodic reclaim of channels that missed their teardown
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.ChannelSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				removed := router.Sweep(func(txID string) bool {
					txn, err := coordinator.GetTransaction(sweepCtx, txID)
					if err != nil {
						return false
					}
					return txn.State.IsTerminal()
				})
				if removed > 0 {
					log.Info().Int("channels", removed).Msg("swept terminal transaction channels")
				}
			}
		}
	}()

	// Notification delivery worker
	notifierCtx, stopNotifier := context.WithCancel(ctx)
	defer stopNotifier()

	deliveryWorker := notifier.New(notifier.Config{
		Repo:      notificationRepo,
		Publisher: notifier.NewRouterPublisher(router),
		Logger:    slogger,
		BatchSize: cfg.NotifierBatchSize,
		Interval:  cfg.NotifierInterval,
	})
	go func() {
		if err := deliveryWorker.Start(notifierCtx); err != nil && notifierCtx.Err() == nil {
			log.Error().Err(err).Msg("notification worker stopped")
		}
	}()

	// Handlers
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	wsHandler := ws.NewHandler(coordinator, registry, router, recovery, jwtManager, zl)
	transactionHandler := handler.NewTransactionHandler(coordinator, auditRepo)
	partyHandler := handler.NewPartyHandler(partyRepo, idGen)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	// Create router
	mux := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransactionHandler: transactionHandler,
		PartyHandler:       partyHandler,
		HealthHandler:      healthHandler,
		WSHandler:          wsHandler,
		JWTManager:         jwtManager,
		IdempotencyStore:   idempotencyStore,
		RateLimiter:        middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:             zl,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	stopNotifier()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
