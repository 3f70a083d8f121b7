package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/api/handlers"
	"github.com/chatbot-admin/backend/internal/cache/redis"
	"github.com/chatbot-admin/backend/internal/chat"
	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/llm"
	"github.com/chatbot-admin/backend/internal/metrics"
	"github.com/chatbot-admin/backend/internal/middleware/ratelimit"
	"github.com/chatbot-admin/backend/internal/middleware/security"
	"github.com/chatbot-admin/backend/internal/middleware/validation"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/retrieval"
	"github.com/chatbot-admin/backend/internal/scraper"
	"github.com/chatbot-admin/backend/internal/storage/sqlite"
	"github.com/chatbot-admin/backend/pkg/config"
	appLogger "github.com/chatbot-admin/backend/pkg/logger"
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

	appLogger.Info("Starting chatbot knowledge API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	deps := map[string]handlers.Pinger{"sqlite": sqliteClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		deps["redis"] = redisClient
	}

	docIndex := index.New(sqliteClient)
	retriever := retrieval.NewRetriever(docIndex)

	scrapeClient := scraper.NewClient(scraper.Config{
		Timeout:      time.Duration(cfg.Scraper.TimeoutSec) * time.Second,
		UserAgent:    cfg.Scraper.UserAgent,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	})

	files := ingestion.NewDirStore(cfg.Uploads.Dir, cfg.Uploads.MaxFileSize)
	processor := ingestion.NewProcessor(docIndex, normalize.NewFileNormalizer(nil), scrapeClient, files)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	chatEngine := chat.NewEngine(sqliteClient, retriever, llmClient, chat.Defaults{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.RequestBodyLimit(),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	validationConfig := validation.Config{
		MaxDocumentSize: int(cfg.Uploads.MaxFileSize),
		Logger:          appLogger.Named("validation"),
	}

	api := app.Group("/api/v1")
	api.Use(validation.Middleware(validationConfig))

	switch cfg.RateLimit.Backend {
	case "memory":
		limiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxRequestsPerMinute, cfg.RateLimit.Burst)
		defer limiter.Stop()
		api.Use(ratelimit.Middleware(limiter, ratelimit.ClientKey, appLogger.Named("ratelimit")))
	case "redis":
		limiter := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit.MaxRequestsPerMinute)
		api.Use(ratelimit.Middleware(limiter, ratelimit.ClientKey, appLogger.Named("ratelimit")))
	}

	handlers.Routes{
		Documents:  handlers.NewDocumentHandler(docIndex, processor, files, cfg.Uploads.MaxFileSize),
		Scrape:     handlers.NewScrapeHandler(processor, scrapeClient),
		Search:     handlers.NewSearchHandler(retriever, cfg.Retrieval.SearchLimit),
		Chat:       handlers.NewChatHandler(chatEngine),
		WebSocket:  handlers.NewWebSocketHandler(chatEngine),
		Health:     handlers.NewHealthHandler(deps),
		Validation: validationConfig,
	}.Register(api)

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
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
