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

	"tipjar/config"
	stripeGateway "tipjar/internal/adapter/gateway/stripe"
	httpHandler "tipjar/internal/adapter/http/handler"
	firestoreStorage "tipjar/internal/adapter/storage/firestore"
	memoryStorage "tipjar/internal/adapter/storage/memory"
	pgStorage "tipjar/internal/adapter/storage/postgres"
	redisStorage "tipjar/internal/adapter/storage/redis"
	"tipjar/internal/core/ports"
	"tipjar/internal/metrics"
	"tipjar/internal/service"
	"tipjar/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config:\n%v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("ledger", cfg.Ledger.Driver).
		Msg("Starting tipjar")

	ctx := context.Background()
	var (
		healthCheckers []ports.HealthChecker
		auditSvc       ports.AuditService
	)

	// Ledger store
	ledger, closeLedger, checker, auditRepo := openLedger(ctx, cfg, log)
	defer closeLedger()
	healthCheckers = append(healthCheckers, checker)
	if auditRepo != nil {
		auditSvc = service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	}

	// Redis is optional: idempotency cache, processed-event filter and rate limits.
	var (
		idempotencyCache ports.IdempotencyCache
		processedEvents  ports.ProcessedEventStore
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer func(rdb *goredis.Client) { _ = rdb.Close() }(rdb)
		log.Info().Msg("Redis connected")

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		processedEvents = redisStorage.NewProcessedEventStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	gateway := stripeGateway.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Timeout,
		logger.Component(log, "stripe"))
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	paymentSvc := service.NewPaymentService(gateway, ledger, idempotencyCache, service.PaymentConfig{
		Platform:      cfg.Stripe.Platform,
		LedgerTimeout: cfg.Ledger.Timeout,
	}, logger.Component(log, "payments"))
	earningsSvc := service.NewEarningsService(ledger, cfg.Ledger.Timeout)
	processor := service.NewWebhookProcessor(gateway, ledger, processedEvents, service.WebhookConfig{
		LedgerTimeout: cfg.Ledger.Timeout,
		AckPolicy:     service.AckAfterVerification,
	}, logger.Component(log, "webhook"))

	metrics.Register()

	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
		specBytes = nil
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:       paymentSvc,
		EarningsSvc:      earningsSvc,
		WebhookProcessor: processor,
		TokenSvc:         tokenSvc,
		RateLimitStore:   rateLimitStore,
		HealthCheckers:   healthCheckers,
		AuditSvc:         auditSvc,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		OpenAPISpec:      specBytes,
		Mode:             cfg.Server.Mode,
		Logger:           log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openLedger connects the configured ledger driver. The audit repository is
// only available with postgres.
func openLedger(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.LedgerStore, func(), ports.HealthChecker, ports.AuditRepository) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverFirestore:
		client, err := firestoreStorage.NewClient(ctx, cfg.Firestore.ProjectID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		return firestoreStorage.NewLedger(client), func() { _ = client.Close() },
			firestoreStorage.NewHealthCheck(client), nil

	case config.LedgerDriverMemory:
		log.Warn().Msg("Using the in-memory ledger; data is lost on restart")
		l := memoryStorage.NewLedger()
		return l, func() {}, l, nil

	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		log.Info().Msg("PostgreSQL connected")
		return pgStorage.NewLedger(pool), pool.Close,
			pgStorage.NewHealthCheck(pool), pgStorage.NewAuditRepo(pool)
	}
}
