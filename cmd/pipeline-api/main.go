package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/salesdesk/pipeline-api/api/swagger"
	"github.com/salesdesk/pipeline-api/internal/handler"
	"github.com/salesdesk/pipeline-api/internal/middleware"
	"github.com/salesdesk/pipeline-api/internal/repository"
	"github.com/salesdesk/pipeline-api/internal/service"
	"github.com/salesdesk/pipeline-api/pkg/cache"
	"github.com/salesdesk/pipeline-api/pkg/config"
	"github.com/salesdesk/pipeline-api/pkg/database"
	"github.com/salesdesk/pipeline-api/pkg/logger"
	corsmiddleware "github.com/salesdesk/pipeline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/salesdesk/pipeline-api/pkg/middleware/requestid"
)

// @title Sales Pipeline API
// @version 1.0.0
// @description Lead, callback and transfer management for the sales engagement pipeline
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached reads without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	leadRepo := repository.NewLeadRepository(db)
	callbackRepo := repository.NewCallbackRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, metricsSvc, logr)

	notificationSvc := service.NewNotificationService(cfg.Notifications, logr)
	authSvc := service.NewAuthService(cfg.JWT.Secret)
	pipelineSvc := service.NewPipelineService(leadRepo, callbackRepo, transferRepo, employeeRepo, cacheRepo,
		cfg.Pipeline.SummaryCacheTTL, cfg.Pipeline.LeaderboardSize, logr)
	leadSvc := service.NewLeadService(leadRepo, employeeRepo, callbackRepo, transferRepo, notificationSvc, metricsSvc, pipelineSvc, validate, logr)
	callbackSvc := service.NewCallbackService(callbackRepo, leadRepo, transferRepo, metricsSvc, pipelineSvc, validate, logr)
	transferSvc := service.NewTransferService(transferRepo, callbackRepo, employeeRepo, notificationSvc, metricsSvc, pipelineSvc, validate, logr)

	leadHandler := handler.NewLeadHandler(leadSvc)
	callbackHandler := handler.NewCallbackHandler(callbackSvc)
	transferHandler := handler.NewTransferHandler(transferSvc)
	pipelineHandler := handler.NewPipelineHandler(pipelineSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		leads := api.Group("/leads")
		{
			leads.GET("", leadHandler.List)
			leads.POST("", leadHandler.Create)
			leads.GET("/lookup", leadHandler.Lookup)
			leads.GET("/stats", leadHandler.Stats)
			leads.GET("/:id", leadHandler.Get)
			leads.PUT("/:id", leadHandler.Update)
			leads.DELETE("/:id", leadHandler.Delete)
			leads.PATCH("/:id/status", leadHandler.UpdateStatus)
			leads.PATCH("/:id/assignee", leadHandler.Reassign)
			leads.GET("/:id/callbacks", callbackHandler.ListByLead)
		}

		callbacks := api.Group("/callbacks")
		{
			callbacks.GET("", callbackHandler.List)
			callbacks.POST("", callbackHandler.Create)
			callbacks.GET("/stats", callbackHandler.Stats)
			callbacks.GET("/:id", callbackHandler.Get)
			callbacks.PATCH("/:id/reschedule", callbackHandler.Reschedule)
			callbacks.PATCH("/:id/complete", callbackHandler.Complete)
			callbacks.PATCH("/:id/cancel", callbackHandler.Cancel)
			callbacks.PATCH("/:id/unreachable", callbackHandler.MarkNotReachable)
			callbacks.DELETE("/:id", callbackHandler.Delete)
			callbacks.POST("/:id/transfers", transferHandler.Initiate)
		}

		transfers := api.Group("/transfers")
		{
			transfers.GET("", transferHandler.List)
			transfers.GET("/my", transferHandler.ListMine)
			transfers.GET("/:id", transferHandler.Get)
			transfers.POST("/:id/resolve", transferHandler.Resolve)
			transfers.POST("/:id/complete", transferHandler.Complete)
			transfers.POST("/:id/cancel", transferHandler.Cancel)
		}

		api.GET("/pipeline/summary", pipelineHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
