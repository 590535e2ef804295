package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/api/handlers"
	"github.com/dashgen/backend/internal/cache/redis"
	"github.com/dashgen/backend/internal/chat"
	"github.com/dashgen/backend/internal/dataset"
	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/internal/llm"
	"github.com/dashgen/backend/internal/metrics"
	"github.com/dashgen/backend/internal/middleware/ratelimit"
	"github.com/dashgen/backend/internal/middleware/security"
	"github.com/dashgen/backend/internal/middleware/validation"
	"github.com/dashgen/backend/internal/storage/sqlite"
	"github.com/dashgen/backend/pkg/config"
	appLogger "github.com/dashgen/backend/pkg/logger"
)

const uploadDir = "./data/uploads"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting dashboard generation API server")

	metrics.Init()

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		appLogger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, chat answers will not be cached", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	loader := dataset.NewCSVLoader(cfg.Analysis.MaxRows)
	manager := jobs.NewManager(loader, analysisOptions(cfg), cfg.Jobs.StageTimeout, sqliteClient)
	chatEngine := chat.NewEngine(manager, llmClient, cacheClient)

	retentionDone := make(chan struct{})
	go runRetention(manager, sqliteClient, cfg.Jobs.RetentionHours, retentionDone)

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
		Logger:        appLogger.GetLogger(),
	}))

	datasetHandler := handlers.NewDatasetHandler(manager, uploadDir)
	jobsHandler := handlers.NewJobsHandler(manager, cacheClient)
	chatHandler := handlers.NewChatHandler(chatEngine)
	wsHandler := handlers.NewWebSocketHandler(manager)

	api := app.Group("/api/v1")

	api.Post("/datasets", datasetHandler.UploadDataset)
	api.Get("/jobs/:id", jobsHandler.GetStatus)
	api.Get("/jobs/:id/dashboard", jobsHandler.GetDashboard)
	api.Delete("/jobs/:id", jobsHandler.CancelJob)
	api.Post("/jobs/:id/chat", chatHandler.HandleQuery)

	api.Use("/jobs/:id/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/jobs/:id/events", websocket.New(wsHandler.HandleJobEvents))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	close(retentionDone)
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func analysisOptions(cfg *config.Config) analysis.Options {
	return analysis.Options{
		SampleSize:        cfg.Analysis.SampleSize,
		TypeMatchRatio:    cfg.Analysis.TypeMatchRatio,
		CategoricalRatio:  cfg.Analysis.CategoricalRatio,
		TopK:              cfg.Analysis.TopK,
		CorrelationCutoff: cfg.Analysis.CorrelationCutoff,
		GroupingMinCard:   cfg.Analysis.GroupingMinCard,
		GroupingMaxCard:   cfg.Analysis.GroupingMaxCard,
		MaxPairColumns:    cfg.Analysis.MaxPairColumns,
		MaxCharts:         cfg.Analysis.MaxCharts,
		ScoreFloor:        cfg.Analysis.ScoreFloor,
		DiversityCap:      cfg.Analysis.DiversityCap,
	}
}

// runRetention drops terminal jobs from memory and the archive once they age out.
func runRetention(manager *jobs.Manager, archive *sqlite.Client, retentionHours int, done <-chan struct{}) {
	if retentionHours <= 0 {
		return
	}
	maxAge := time.Duration(retentionHours) * time.Hour

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			evicted := manager.EvictTerminal(maxAge)
			deleted, err := archive.DeleteOlderThan(context.Background(), time.Now().Add(-maxAge))
			if err != nil {
				appLogger.Warn("Archive retention sweep failed", zap.Error(err))
				continue
			}
			if evicted > 0 || deleted > 0 {
				appLogger.Info("Retention sweep completed",
					zap.Int("evicted_from_memory", evicted),
					zap.Int64("deleted_from_archive", deleted),
				)
			}
		}
	}
}
