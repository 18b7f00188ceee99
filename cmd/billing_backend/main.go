package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/adboard/billing-engine/internal/adapters/cache"
	"github.com/adboard/billing-engine/internal/adapters/events"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/core/services"
	"github.com/adboard/billing-engine/internal/handlers"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/adboard/billing-engine/internal/platform/config"
	"github.com/adboard/billing-engine/internal/ratelimit"
	"github.com/adboard/billing-engine/internal/repositories/database/pgsql"
	"github.com/adboard/billing-engine/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
)

// limiterSweepInterval bounds the sliding-window limiter's memory under key churn.
const limiterSweepInterval = 5 * time.Minute

// @title Billing Engine API
// @version 1.0
// @description Balance ledger and billing engine for the listing directory.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Session balance cache: write-through collaborator, optional.
	var sessionCache portssvc.SessionCache = cache.NoopSessionCache{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisSessionCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect session cache", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisCache.Close()
		sessionCache = redisCache
		logger.Info("Session balance cache connected.")
	}

	// Ledger audit events: fire-and-forget, optional.
	var eventPublisher portssvc.LedgerEventPublisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Error("Failed to connect event bus", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer natsPublisher.Close()
		eventPublisher = natsPublisher
		logger.Info("Ledger event bus connected.")
	}

	ledgerRepo := pgsql.NewLedgerRepository(dbPool)
	listingRepo := pgsql.NewListingRepository(dbPool)

	policy := services.BillingPolicy{
		MerchantID:         cfg.GatewayMerchantID,
		ActivationFee:      cfg.ActivationFee,
		BoostFee:           cfg.BoostFee,
		RecurringWindow:    cfg.RecurringWindow,
		BoostDuration:      cfg.BoostDuration,
		PendingEntryExpiry: cfg.PendingEntryExpiry,
	}
	serviceContainer := &portssvc.ServiceContainer{
		Reconciliation: services.NewReconciliationService(ledgerRepo, sessionCache, eventPublisher, cfg.GatewayMerchantID, cfg.GatewayWebhookSecret),
		Purchase:       services.NewPurchaseService(ledgerRepo, listingRepo, sessionCache, eventPublisher, policy),
		BillingRun:     services.NewBillingScheduler(ledgerRepo, listingRepo, sessionCache, eventPublisher, policy),
	}

	// Sliding-window limiter for authenticated endpoints, swept in the background.
	windowLimiter := ratelimit.New(cfg.RateLimits)
	windowLimiter.StartSweeper(ctx, limiterSweepInterval, logger)

	// Coarse per-IP limiter in front of the webhook endpoint.
	webhookRate := cfg.RateLimits[config.RateLimitWebhook]
	webhookIPLimiter := limiter.New(memorystore.NewStore(), limiter.Rate{
		Period: webhookRate.Window,
		Limit:  int64(webhookRate.MaxRequests),
	})

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer, windowLimiter, webhookIPLimiter)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runMigrations applies all pending "up" migrations from the migrations directory.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	// Open a standard sql.DB connection for migrate, using the pgx stdlib
	// driver to stay compatible with the main pool.
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
