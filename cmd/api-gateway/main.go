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
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-seating-api/api/swagger"
	"github.com/noah-isme/exam-seating-api/internal/handler"
	internalmiddleware "github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/repository"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/broker"
	"github.com/noah-isme/exam-seating-api/pkg/cache"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	"github.com/noah-isme/exam-seating-api/pkg/database"
	"github.com/noah-isme/exam-seating-api/pkg/jobs"
	"github.com/noah-isme/exam-seating-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-seating-api/pkg/middleware/requestid"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

// @title Exam Seating API
// @version 1.0.0
// @description Generates and manages exam seating plans that keep candidates of the same course apart.
// @BasePath /
// @schemes http

const cacheNamespace = "exam-seating"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, plan cache disabled", zap.Error(err))
		}
		cacheRepo = repository.NewCacheRepository(client, cacheNamespace, logr)
		defer cacheRepo.Close()
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	var dispatcher *service.PlanEventDispatcher
	if cfg.Events.Enabled {
		publisher := broker.NewPublisher(cfg.Events.URL, cfg.Events.Queue, logr)
		defer publisher.Close()
		dispatcher = service.NewPlanEventDispatcher(publisher, jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			MaxRetries: cfg.Events.MaxRetries,
		}, metricsSvc, logr)
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}

	examRepo := repository.NewExamRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	planRepo := repository.NewSeatingPlanRepository(db)

	examSvc := service.NewExamService(examRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, validate, logr)
	planSvc := service.NewSeatingPlanService(planRepo, examRepo, classroomRepo, cacheSvc, dispatcher, exportSvc, metricsSvc, validate, logr, service.SeatingPlanConfig{
		MaxClassrooms: cfg.Seating.MaxClassrooms,
		CacheTTL:      cfg.Cache.TTL,
	})

	examHandler := handler.NewExamHandler(examSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	planHandler := handler.NewSeatingPlanHandler(planSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, dispatcher)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		readyCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(readyCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "database"})
			return
		}
		if cacheRepo != nil {
			if err := cacheRepo.Ping(readyCtx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "redis"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())

	exams := api.Group("/exams")
	exams.GET("", examHandler.List)
	exams.POST("", examHandler.Create)
	exams.GET("/:id", examHandler.Get)
	exams.PUT("/:id/courses", examHandler.UpsertCourse)
	exams.DELETE("/:id", examHandler.Delete)

	classrooms := api.Group("/classrooms")
	classrooms.GET("", classroomHandler.List)
	classrooms.POST("", classroomHandler.Create)
	classrooms.GET("/:id", classroomHandler.Get)
	classrooms.PUT("/:id", classroomHandler.Update)
	classrooms.DELETE("/:id", classroomHandler.Delete)

	plans := api.Group("/seating-plans")
	plans.POST("/generate", planHandler.Generate)
	plans.GET("", planHandler.List)
	plans.GET("/download/:token", planHandler.Download)
	plans.GET("/:id", planHandler.Get)
	plans.PATCH("/:id", planHandler.Update)
	plans.DELETE("/:id", planHandler.Delete)
	plans.PATCH("/:id/status", planHandler.UpdateStatus)
	plans.POST("/:id/swap", planHandler.Swap)
	plans.POST("/:id/export", planHandler.Export)

	api.GET("/metrics", metricsHandler.Prometheus)
	api.GET("/metrics/summary", metricsHandler.Summary)

	go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
