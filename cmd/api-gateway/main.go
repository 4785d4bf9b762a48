package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dekont-api/api/swagger"
	"github.com/noah-isme/dekont-api/internal/handler"
	"github.com/noah-isme/dekont-api/internal/middleware"
	"github.com/noah-isme/dekont-api/internal/repository"
	"github.com/noah-isme/dekont-api/internal/service"
	"github.com/noah-isme/dekont-api/pkg/analyzer"
	"github.com/noah-isme/dekont-api/pkg/cache"
	"github.com/noah-isme/dekont-api/pkg/config"
	"github.com/noah-isme/dekont-api/pkg/database"
	"github.com/noah-isme/dekont-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dekont-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dekont-api/pkg/middleware/requestid"
	"github.com/noah-isme/dekont-api/pkg/notify"
	"github.com/noah-isme/dekont-api/pkg/storage"
)

// @title Dekont API
// @version 1.0.0
// @description Monthly internship payment receipts: submission, approval, analysis and reconciliation.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	db, err := database.NewPostgres(cfg.Database, 5*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	files, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		return err
	}
	signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	metrics := service.NewMetricsService()
	validate := validator.New()

	receiptRepo := repository.NewReceiptRepository(db)
	receiptFileRepo := repository.NewReceiptFileRepository(db)
	internshipRepo := repository.NewInternshipRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "dekont:")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reconciliation.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	receiptSvc := service.NewReceiptService(receiptRepo, internshipRepo, auditRepo, validate, logr,
		service.WithReceiptClock(time.Now, loc),
		service.WithReceiptCache(cacheSvc),
		service.WithReceiptMetrics(metrics),
		service.WithBlobRemover(files),
		service.WithUploadRegistry(receiptFileRepo),
	)
	reconciliationSvc := service.NewReconciliationService(internshipRepo, receiptRepo, cacheSvc, metrics, logr, service.ReconciliationConfig{
		CacheTTL:                  cfg.Reconciliation.CacheTTL,
		RejectedCountsAsAddressed: cfg.Reconciliation.RejectedCountsAsAddressed,
		Location:                  loc,
	})

	provider, err := newAnalyzer(ctx, cfg.Analysis)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
		logr.Info("receipt analysis enabled", zap.String("provider", provider.Name()))
	}
	analysisSvc := service.NewAnalysisService(receiptRepo, files, provider, auditRepo, metrics, logr, service.AnalysisConfig{
		Timeout:           cfg.Analysis.Timeout,
		MaxImageDimension: cfg.Analysis.MaxImageDimension,
		MaxFileSizeBytes:  cfg.Receipts.MaxFileSizeBytes,
	})
	batchSvc := service.NewBatchAnalysisService(analysisSvc, cfg.Analysis.BatchConcurrency, cfg.Analysis.Timeout, metrics, logr)

	var dispatcher handler.ReminderDispatcher
	if cfg.Reminders.Enabled {
		// The file is opened per write so reminder-scan can drain it while the server runs.
		outbox := notify.NewSharedOutbox(cfg.Reminders.OutboxPath)
		if err := outbox.Init(); err != nil {
			return err
		}

		reminderSvc := service.NewReminderService(outbox, metrics, logr, service.ReminderConfig{
			Workers: cfg.Reminders.Workers,
			Retries: cfg.Reminders.Retries,
		})
		reminderSvc.Start(ctx)
		defer reminderSvc.Stop()
		reminderSvc.StartScheduler(ctx, reconciliationSvc, cfg.Reminders.ScanInterval)
		dispatcher = reminderSvc
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if rl := middleware.NewRedisLimiter(redisClient, "dekont:"); rl != nil {
		limiter = rl
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/system", middleware.JWT(authSvc), middleware.Admins(), metricsHandler.System)
	handler.Routes{
		Auth:     handler.NewAuthHandler(authSvc),
		Receipts: handler.NewReceiptHandler(receiptSvc),
		Files: handler.NewReceiptFileHandler(files, receiptFileRepo, signer, receiptSvc, handler.ReceiptFileConfig{
			MaxFileSizeBytes: cfg.Receipts.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Receipts.AllowedMIMEs,
			DownloadPath:     strings.TrimRight(cfg.APIPrefix, "/") + "/receipts/files/download",
		}),
		Analysis:       handler.NewAnalysisHandler(analysisSvc, batchSvc),
		Reconciliation: handler.NewReconciliationHandler(reconciliationSvc, dispatcher),
		Authenticate:   middleware.JWT(authSvc),
		BatchRateLimit: middleware.RateLimit(limiter, "batch-analysis", cfg.RateLimit.BatchLimit, cfg.RateLimit.BatchWindow, logr),
		Audit: func(action, resource string) gin.HandlerFunc {
			return middleware.Audit(auditRepo, logr, action, resource)
		},
	}.Register(api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newAnalyzer(ctx context.Context, cfg config.AnalysisConfig) (analyzer.Analyzer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("ANALYSIS_GEMINI_API_KEY is required when analysis is enabled")
		}
		return analyzer.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "ollama":
		return analyzer.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.Provider)
	}
}

func readinessChecks(pingDB func(context.Context) error, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"postgres": pingDB}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
