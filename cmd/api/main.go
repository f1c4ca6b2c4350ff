package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/answer"
	"github.com/knowledge-assistant/backend/internal/api"
	"github.com/knowledge-assistant/backend/internal/api/handlers"
	"github.com/knowledge-assistant/backend/internal/cache/redis"
	"github.com/knowledge-assistant/backend/internal/chunker"
	"github.com/knowledge-assistant/backend/internal/embedding"
	"github.com/knowledge-assistant/backend/internal/ingestion"
	"github.com/knowledge-assistant/backend/internal/metrics"
	"github.com/knowledge-assistant/backend/internal/middleware/security"
	"github.com/knowledge-assistant/backend/internal/question"
	"github.com/knowledge-assistant/backend/internal/storage/sqlite"
	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
	"github.com/knowledge-assistant/backend/pkg/config"
	appLogger "github.com/knowledge-assistant/backend/pkg/logger"
)

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

	appLogger.Info("Starting Knowledge Assistant API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:           cfg.Redis.Host,
		Port:           cfg.Redis.Port,
		Password:       cfg.Redis.Password,
		DB:             cfg.Redis.DB,
		AnswerTTL:      time.Duration(cfg.Limits.CacheTTLSeconds) * time.Second,
		IdempotencyTTL: time.Duration(cfg.Limits.IdempotencyTTLSeconds) * time.Second,
		RatePerMinute:  cfg.Limits.RatePerMinute,
	})
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	llmTimeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second

	provider := embedding.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, llmTimeout)

	qdrantClient, err := qdrant.NewClient(cfg.Qdrant.Endpoint, cfg.Qdrant.VectorDim, provider)
	if err != nil {
		appLogger.Fatal("Failed to create Qdrant client", zap.Error(err))
	}
	defer qdrantClient.Close()

	var composer answer.Composer
	if cfg.LLM.StubMode {
		composer = answer.NewStubComposer()
		appLogger.Info("Answer composition running in stub mode")
	} else {
		composer = answer.NewModelComposer(answer.ModelConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     llmTimeout,
		})
	}

	splitter := chunker.New(cfg.Chunking.Size, cfg.Chunking.OverlapWords)
	processor := ingestion.NewProcessor(sqliteClient, qdrantClient, splitter)
	engine := question.NewEngine(sqliteClient, redisClient, redisClient, qdrantClient, composer, question.Config{
		TopK:           cfg.Limits.TopK,
		ScoreThreshold: cfg.Limits.ScoreThreshold,
	})

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID, X-Request-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	api.RegisterRoutes(app, api.Deps{
		Questions: handlers.NewQuestionHandler(engine),
		Documents: handlers.NewDocumentHandler(processor, redisClient),
		Tenants:   handlers.NewTenantHandler(sqliteClient),
		Health:    handlers.NewHealthHandler(sqliteClient, redisClient, qdrantClient),
		Metrics:   metrics.Handler(),
	})

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
