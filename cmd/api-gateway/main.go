package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rtms-ops-api/api/swagger"
	"github.com/noah-isme/rtms-ops-api/internal/handler"
	"github.com/noah-isme/rtms-ops-api/internal/middleware"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	"github.com/noah-isme/rtms-ops-api/internal/repository"
	"github.com/noah-isme/rtms-ops-api/internal/service"
	"github.com/noah-isme/rtms-ops-api/pkg/cache"
	"github.com/noah-isme/rtms-ops-api/pkg/config"
	"github.com/noah-isme/rtms-ops-api/pkg/database"
	"github.com/noah-isme/rtms-ops-api/pkg/jobs"
	"github.com/noah-isme/rtms-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rtms-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rtms-ops-api/pkg/middleware/requestid"
	"github.com/noah-isme/rtms-ops-api/pkg/notify"
)

// @title RTMS Operations API
// @version 1.0.0
// @description Approval and alerting workflow engine for well monitoring
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dedup falls back to the database", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	operationRepo := repository.NewOperationRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	wellRepo := repository.NewWellRepository(db)
	telemetryRepo := repository.NewTelemetryRepository(db)
	inboxRepo := repository.NewInboxRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)

	metricsService := service.NewMetricsService()

	sender := notify.NewSMTPSender(cfg.Notifier)
	emailQueue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		email, ok := job.Payload.(notify.Email)
		if !ok {
			logr.Warn("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		if err := sender.Send(email); err != nil {
			metricsService.RecordNotification(false)
			return err
		}
		metricsService.RecordNotification(true)
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Notifier.Workers,
		BufferSize: cfg.Notifier.BufferSize,
		MaxRetries: cfg.Notifier.MaxRetries,
		RetryDelay: cfg.Notifier.RetryDelay,
		Logger:     logr,
	})
	emailQueue.Start(context.Background())
	defer emailQueue.Stop()

	// A typed nil pointer inside an interface would dodge the services'
	// nil checks, so the cache is only handed over when it exists.
	registry := service.NewApprovalRegistry(orgRepo, nil, cfg.Alerts.ChainCacheTTL, logr)
	if cacheRepo != nil {
		registry = service.NewApprovalRegistry(orgRepo, cacheRepo, cfg.Alerts.ChainCacheTTL, logr)
	}
	inboxService := service.NewInboxService(inboxRepo, userRepo, operationRepo, alertRepo, registry, emailQueue, logr)
	executors := service.NewOperationExecutors(orgRepo)
	operationService := service.NewOperationService(operationRepo, registry, executors, inboxService, metricsService, validate, logr)
	alertService := service.NewAlertService(alertRepo, complaintRepo, userRepo, inboxService, metricsService, validate, logr)
	telemetryService := service.NewTelemetryService(telemetryRepo, wellRepo, alertRepo, nil, inboxService, metricsService, cfg.Alerts.DedupWindow, logr)
	if cacheRepo != nil {
		telemetryService = service.NewTelemetryService(telemetryRepo, wellRepo, alertRepo, cacheRepo, inboxService, metricsService, cfg.Alerts.DedupWindow, logr)
	}
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      "rtms-ops-api",
	})
	exportService := service.NewExportService(alertRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	operationHandler := handler.NewOperationHandler(operationService)
	alertHandler := handler.NewAlertHandler(alertService)
	telemetryHandler := handler.NewTelemetryHandler(telemetryService)
	inboxHandler := handler.NewInboxHandler(inboxService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	if cfg.Telemetry.Enabled {
		api.POST("/telemetry", telemetryHandler.Ingest)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.GET("/auth/me", authHandler.Profile)

		authed.GET("/operations", operationHandler.List)
		authed.POST("/operations", operationHandler.Create)
		authed.GET("/operations/catalog", operationHandler.Catalog)
		authed.GET("/operations/:id", operationHandler.Get)
		authed.POST("/operations/:id/stage1", operationHandler.DecideStage1)
		authed.POST("/operations/:id/stage2", operationHandler.DecideStage2)

		authed.GET("/alerts", alertHandler.List)
		authed.GET("/alerts/:id", alertHandler.Get)
		authed.POST("/alerts/:id/approve/employee",
			middleware.RequireRoles(models.RoleEmployee), alertHandler.ApproveByEmployee)
		authed.POST("/alerts/:id/approve/manager",
			middleware.RequireRoles(models.RoleManager), alertHandler.ApproveByManager)
		authed.POST("/alerts/:id/approve/owner",
			middleware.RequireRoles(models.RoleOwner), alertHandler.ApproveByOwner)
		authed.POST("/alerts/:id/close", alertHandler.CloseWithComment)
		authed.POST("/alerts/:id/complaint", alertHandler.ConvertToComplaint)

		authed.GET("/complaints", alertHandler.ListComplaints)
		authed.POST("/complaints/:id/close", alertHandler.CloseComplaint)

		authed.GET("/telemetry/nodes", telemetryHandler.NodeData)
		authed.GET("/telemetry/nodes/:nodeId", telemetryHandler.LatestReading)

		authed.GET("/inbox", inboxHandler.List)
		authed.GET("/inbox/:id", inboxHandler.Detail)

		if cfg.Exports.Enabled {
			authed.GET("/exports/alerts",
				middleware.RequireRoles(models.RoleOwner, models.RoleManager, models.RoleAdmin), exportHandler.Alerts)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
