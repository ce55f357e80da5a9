package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/handlers"
	"github.com/curodigital/whatsapp-billing-relay/internal/billing"
	"github.com/curodigital/whatsapp-billing-relay/internal/repository"
	"github.com/curodigital/whatsapp-billing-relay/internal/scheduler"
	"github.com/curodigital/whatsapp-billing-relay/internal/service"
	"github.com/curodigital/whatsapp-billing-relay/pkg/database"
	"github.com/curodigital/whatsapp-billing-relay/pkg/inspire"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
	"github.com/curodigital/whatsapp-billing-relay/pkg/redis"
	"github.com/curodigital/whatsapp-billing-relay/pkg/validator"
	"github.com/curodigital/whatsapp-billing-relay/pkg/whatsapp"
	"github.com/curodigital/whatsapp-billing-relay/routes"

	_ "github.com/curodigital/whatsapp-billing-relay/docs" // swagger docs
)

// @title WhatsApp Billing Relay API
// @version 1.0
// @description Relays WhatsApp messages between customers and the Inspire CRM and derives usage-based billing from the message ledger

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	logger.Init()

	// Costs serialize as JSON numbers, matching the legacy report consumers.
	decimal.MarshalJSONWithoutQuotes = true

	// Load config
	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.Inspire.APIKey == "" {
		logger.Fatalf("INSPIRE_API_KEY is required but not set")
	}
	if cfg.WhatsApp.AuthToken == "" {
		logger.Fatalf("WHATSAPP_AUTH_TOKEN is required but not set")
	}
	if cfg.Auth.BillingAPIKey == "" {
		logger.Fatalf("BILLING_API_KEY is required but not set")
	}

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		logger.Fatalf("Invalid billing timezone %q: %v", cfg.Billing.Timezone, err)
	}

	logger.Infof("Starting WhatsApp Billing Relay...")

	// Init DB
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data
	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	// Init redis
	var redisClient *redis.Client
	redisClient, err = redis.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Redis not available, tracking cache disabled: %v", err)
		redisClient = nil
	}

	// Outbound clients
	whatsappClient := whatsapp.NewClient(cfg.WhatsApp)
	inspireClient := inspire.NewClient(cfg.Inspire)

	// Repositories
	billingRepo := repository.NewBillingRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Billing core
	classifier := billing.NewClassifier(cfg.Billing.SessionGap)
	calculator := billing.NewCalculator(cfg.Billing.UtilityFee, cfg.Billing.CarrierFee, cfg.Billing.MAUFee)
	aggregator := billing.NewAggregator(classifier, cfg.Billing.UtilityFee, cfg.Billing.CarrierFee)

	// Services
	var messageService *service.MessageService
	if redisClient != nil {
		messageService = service.NewMessageService(messageRepo, whatsappClient, inspireClient, redisClient)
	} else {
		messageService = service.NewMessageService(messageRepo, whatsappClient, inspireClient, nil)
	}
	billingService := service.NewBillingService(billingRepo, messageRepo, inspireClient, classifier, calculator, loc)
	reportService := service.NewReportService(billingRepo, aggregator, loc, cfg.Billing.PageSize)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize scheduler
	sched := scheduler.NewScheduler(
		reportService,
		cfg.Validation.Interval,
		cfg.Validation.AlertWebhook,
		cfg.Validation.AlertThreshold,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisClient)
	messageHandler := handlers.NewMessageHandler(messageService)
	webhookHandler := handlers.NewWebhookHandler(billingService)
	billingHandler := handlers.NewBillingHandler(reportService)
	schedulerHandler := handlers.NewSchedulerHandler(sched, ctx)

	// Auto-start scheduler
	if os.Getenv("AUTO_START_SCHEDULER") != "false" {
		logger.Infof("Auto-starting validation scheduler...")
		if err := sched.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"x-relay-auth-key",
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, messageHandler, webhookHandler, billingHandler, schedulerHandler, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Cancel context to signal all goroutines to stop
	cancel()

	// Stop scheduler first (with timeout)
	if sched.IsRunning() {
		logger.Infof("Stopping validation scheduler...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sched.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping scheduler: %v", err)
			} else {
				logger.Infof("Scheduler stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Scheduler stop timeout, forcing shutdown")
		}
	}

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	// Close database connection
	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	// Close Redis connection
	if redisClient != nil {
		logger.Infof("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			logger.Errorf("Error closing Redis: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
