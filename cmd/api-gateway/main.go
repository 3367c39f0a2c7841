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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ttms-api/api/swagger"
	"github.com/noah-isme/ttms-api/internal/handler"
	internalmiddleware "github.com/noah-isme/ttms-api/internal/middleware"
	"github.com/noah-isme/ttms-api/internal/repository"
	"github.com/noah-isme/ttms-api/internal/service"
	"github.com/noah-isme/ttms-api/pkg/cache"
	"github.com/noah-isme/ttms-api/pkg/config"
	"github.com/noah-isme/ttms-api/pkg/database"
	"github.com/noah-isme/ttms-api/pkg/jobs"
	"github.com/noah-isme/ttms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ttms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ttms-api/pkg/middleware/requestid"
)

// @title TTMS API
// @version 1.0.0
// @description Timetable generation and query service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.Enabled {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	lock := cache.NewGenerationLock(redisClient, cfg.Timetable.LockTTL)
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Timetable.GridCacheTTL, logr.Named("cache"))
	}

	subjectRepo := repository.NewSubjectRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	generator := service.NewTimetableGeneratorService(
		subjectRepo,
		staffRepo,
		periodRepo,
		timetableRepo,
		db,
		lock,
		cacheSvc,
		metricsSvc,
		validate,
		logr.Named("generator"),
		service.TimetableGeneratorConfig{
			SafetyMargin:     cfg.Timetable.SafetyMargin,
			MaxPerSubjectDay: cfg.Timetable.MaxPerSubjectDay,
			RelaxedDailyCap:  cfg.Timetable.RelaxedDailyCap,
			RoomFallbackID:   cfg.Timetable.RoomFallbackID,
			BatchTTL:         cfg.Timetable.BatchTTL,
		},
	)
	viewer := service.NewTimetableViewService(timetableRepo, periodRepo, staffRepo, cacheSvc, cfg.Timetable.GridCacheTTL, validate, logr.Named("viewer"))
	auditor := service.NewTimetableAuditService(timetableRepo, staffRepo, metricsSvc, logr.Named("audit"), cfg.Timetable.MaxPerSubjectDay)
	exporter := service.NewTimetableExportService(timetableRepo, periodRepo, staffRepo, service.TimetableExportRenderers{}, validate, logr.Named("export"))

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchQueue := jobs.NewQueue("timetable-batch", service.NewTimetableBatchWorker(generator).Handle, jobs.QueueConfig{
		Workers:    cfg.Timetable.WorkerConcurrency,
		BufferSize: 8,
		Logger:     logr,
	})
	batchQueue.Start(rootCtx)
	defer batchQueue.Stop()
	generator.UseDispatcher(batchQueue)

	auditCron, err := auditor.StartAudit(cfg.Timetable.AuditCron)
	if err != nil {
		logr.Fatal("failed to schedule audit", zap.Error(err))
	}
	if auditCron != nil {
		defer func() { <-auditCron.Stop().Done() }()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisPing(ctx, redisClient) }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	timetableHandler := handler.NewTimetableHandler(generator, viewer)
	reportHandler := handler.NewTimetableReportHandler(auditor, exporter)

	api.GET("/periods", timetableHandler.Periods)
	tt := api.Group("/timetable")
	if cfg.Timetable.Enabled {
		tt.POST("/generate", timetableHandler.Generate)
		tt.POST("/generate-all", timetableHandler.GenerateAll)
		tt.GET("/batches/:id", timetableHandler.Batch)
	}
	tt.GET("/grid", timetableHandler.Grid)
	tt.GET("/master", timetableHandler.Master)
	tt.GET("/staff/:staffId", timetableHandler.StaffSchedule)
	tt.GET("/staff/:staffId/calendar.ics", reportHandler.StaffCalendar)
	tt.GET("/export", reportHandler.Export)
	tt.GET("/audit/conflicts", reportHandler.Conflicts)
	tt.GET("/audit/workload", reportHandler.Workload)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPing(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
