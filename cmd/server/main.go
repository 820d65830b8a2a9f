package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/resumezen/internal"
	"github.com/DukeRupert/resumezen/internal/ai"
	"github.com/DukeRupert/resumezen/internal/ai/anthropic"
	aimock "github.com/DukeRupert/resumezen/internal/ai/mock"
	"github.com/DukeRupert/resumezen/internal/billing"
	"github.com/DukeRupert/resumezen/internal/handler"
	"github.com/DukeRupert/resumezen/internal/jobs"
	"github.com/DukeRupert/resumezen/internal/metrics"
	"github.com/DukeRupert/resumezen/internal/middleware"
	"github.com/DukeRupert/resumezen/internal/ocr"
	ocrmock "github.com/DukeRupert/resumezen/internal/ocr/mock"
	"github.com/DukeRupert/resumezen/internal/ocr/ocrspace"
	"github.com/DukeRupert/resumezen/internal/repository"
	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/DukeRupert/resumezen/internal/storage"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/DukeRupert/resumezen/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	version, err := internal.RunMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready", "schema_version", version)

	// Initialize repository
	repo := repository.New(db)
	pg := store.NewPostgres(db, repo)

	// ==========================================================================
	// Providers
	// ==========================================================================

	fileStorage, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	ocrProvider, err := newOCRProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ocr initialization failed: %w", err)
	}

	aiProvider, err := newAIProvider(cfg, repo, logger)
	if err != nil {
		return fmt.Errorf("ai initialization failed: %w", err)
	}

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing not configured, purchases are granted immediately")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	userService := service.NewUserService(repo, logger, service.UserServiceConfig{
		SessionDuration: cfg.SessionDuration,
	})
	catalog := service.NewPlanCatalog(pg, cfg.PlanCatalogTTL, logger)
	credits := service.NewCreditService(pg, catalog, service.CreditServiceConfig{
		Policy: cfg.CreditSelectionPolicy,
	}, logger)
	uploads := service.NewUploadService(fileStorage, service.UploadServiceConfig{
		URLExpiry: cfg.StorageURLExpiry,
	}, logger)
	history := service.NewHistoryService(pg, logger)
	analysis := service.NewAnalysisService(
		credits, uploads, ocrProvider, aiProvider,
		service.NewResumeChecker(service.DefaultResumeThreshold),
		pg,
		service.AnalysisServiceConfig{
			ProviderTimeout:   cfg.ProviderTimeout,
			KeepExtractedText: cfg.KeepExtractedText,
		},
		logger,
	)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimits := middleware.NewAuthRateLimiter(logger)
	throttle := middleware.NewAnalysisThrottle(cfg.AnalyzeRatePerMinute, logger)
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	internalAuth := middleware.NewInternalAuthMiddleware(cfg.InternalAPIToken, logger)

	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is not protected; set METRICS_USERNAME and METRICS_PASSWORD")
	}
	if !internalAuth.Enabled() {
		logger.Info("Direct credit routes are disabled; set INTERNAL_API_TOKEN to enable them")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health(db, logger))
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	if local, ok := fileStorage.(*storage.LocalStorage); ok {
		mux.Handle("GET /files/", http.StripPrefix("/files/", local.Handler()))
	}

	handler.NewAuthHandler(userService, logger, isSecure).
		RegisterRoutes(mux, authLimits.LimitRegister, authLimits.LimitLogin, authMw.RequireUser)
	handler.NewPlanHandler(catalog, credits, billingService, userService, cfg.BaseURL, logger).
		RegisterRoutes(mux, authMw.RequireUser, internalAuth.Require)
	handler.NewResumeHandler(analysis, uploads, history, handler.ResumeHandlerConfig{
		UploadMaxBytes:      cfg.UploadMaxBytes,
		QuickUploadMaxBytes: cfg.QuickUploadMaxBytes,
	}, logger).RegisterRoutes(mux, authMw.RequireUser, throttle.Handler)
	handler.NewWebhookHandler(billingService, credits, logger).RegisterRoutes(mux)

	// WithUser runs for every request so RequireUser can see the user and
	// the request log can name them.
	app := middleware.Stack(
		requestLogging.Handler,
		metrics.Middleware,
		securityHeaders.Handler,
		authMw.WithUser,
	)(mux)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var bg *worker.Worker
	if cfg.WorkerEnabled {
		wcfg := worker.DefaultConfig()
		wcfg.Concurrency = cfg.WorkerConcurrency
		wcfg.PollInterval = cfg.WorkerPollInterval
		wcfg.JobTimeout = cfg.WorkerJobTimeout
		wcfg.MaintenanceInterval = cfg.MaintenanceInterval

		bg, err = worker.New(db, repo, wcfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bg.Register(jobs.NewExpireUserPlansHandler(credits, logger))
		bg.Register(jobs.NewPurgeExpiredSessionsHandler(userService, logger))
		bg.Start(ctx)

		go worker.NewScheduler(repo, wcfg.MaintenanceInterval, logger).Run(ctx)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if bg != nil {
		bg.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newStorage(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case "r2":
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	case "minio":
		s, err := storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:        cfg.MinIOEndpoint,
			AccessKeyID:     cfg.MinIOAccessKeyID,
			SecretAccessKey: cfg.MinIOSecretAccessKey,
			BucketName:      cfg.MinIOBucketName,
			UseSSL:          cfg.MinIOUseSSL,
			PublicURL:       cfg.MinIOPublicURL,
			PresignExpiry:   cfg.StorageURLExpiry,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

func newOCRProvider(cfg *internal.Config, logger *slog.Logger) (ocr.Provider, error) {
	if cfg.OCRProvider == "ocrspace" {
		return ocrspace.New(ocrspace.Config{
			APIKey:  cfg.OCRSpaceKey,
			BaseURL: cfg.OCRSpaceURL,
			Timeout: cfg.OCRRequestMax,
		}, logger)
	}
	logger.Warn("Using mock OCR provider")
	return ocrmock.New(logger), nil
}

func newAIProvider(cfg *internal.Config, repo *repository.Queries, logger *slog.Logger) (ai.AIProvider, error) {
	if cfg.AIProvider == "anthropic" {
		return anthropic.New(anthropic.Config{
			APIKey:        cfg.AnthropicAPIKey,
			Model:         cfg.AnthropicModel,
			AllowedModels: cfg.AIAllowedModels,
			ProviderConfig: ai.ProviderConfig{
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, repo, logger)
	}
	logger.Warn("Using mock AI provider")
	return aimock.New(logger), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
