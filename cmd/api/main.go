package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/casefile-labs/bwc-pipeline/internal/adapter/handler"
	"github.com/casefile-labs/bwc-pipeline/internal/adapter/repository"
	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/internal/infrastructure/cache"
	"github.com/casefile-labs/bwc-pipeline/internal/infrastructure/database"
	"github.com/casefile-labs/bwc-pipeline/internal/infrastructure/storage"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/analysis"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/capability"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/custody"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/discrepancy"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/extract"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/merge"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/report"
	"github.com/casefile-labs/bwc-pipeline/pkg/config"
	pkgvalidator "github.com/casefile-labs/bwc-pipeline/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	log.Println("Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Redis is optional; without it status polling falls back to an
	// in-process cache.
	var runCache analysis.RunCache
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory run cache", zap.Error(err))
		runCache = cache.NewMemoryRunCache(2 * time.Second)
	} else {
		defer redisClient.Close()
		runCache = cache.NewRedisRunCache(redisClient, 2*time.Second, logger)
	}

	log.Println("Connecting to artifact storage...")
	minioClient, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to artifact storage: %v", err)
	}

	runRepo := repository.NewRunRepository(db)

	engine := capability.NewAssemblyAIEngine(cfg.Assembly.APIKey, logger)

	detectorCfg := discrepancy.DefaultConfig()
	detectorCfg.CloseMatchThresholdSec = cfg.Detector.CloseMatchThresholdSec
	detectorCfg.SupportWindowSec = cfg.Detector.SupportWindowSec
	if len(cfg.Detector.SafetyCriticalCategories) > 0 {
		categories := make([]entities.EntityCategory, 0, len(cfg.Detector.SafetyCriticalCategories))
		for _, c := range cfg.Detector.SafetyCriticalCategories {
			categories = append(categories, entities.EntityCategory(c))
		}
		detectorCfg.SafetyCriticalCategories = categories
	}

	service := analysis.NewService(
		runRepo,
		custody.NewTracker(logger),
		engine,
		engine,
		extract.NewExtractor(engine, logger),
		merge.NewMerger(logger),
		discrepancy.NewDetector(detectorCfg, logger),
		report.NewAssembler(logger),
		report.NewExporter(minioClient, logger),
		runCache,
		cfg.RunCeiling(),
		logger,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if err := service.StartWorkerPool(workerCtx, cfg.Worker.Count); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	analysisHandler := handler.NewAnalysisHandler(service, logger)
	router := handler.NewRouter(cfg, analysisHandler)
	router.Setup(e)

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		log.Printf("Environment: %s", cfg.Server.Environment)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if err := service.StopWorkerPool(); err != nil {
		logger.Warn("worker pool shutdown", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
