package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/config"
	"github.com/tetuya0525/dialogue-index-builder/internal/database"
	"github.com/tetuya0525/dialogue-index-builder/internal/handlers"
	"github.com/tetuya0525/dialogue-index-builder/internal/logging"
	"github.com/tetuya0525/dialogue-index-builder/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Dialogue Index Builder...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Analyzer: %s)", cfg.Port, cfg.Analyzer)

	// Initialize MongoDB — the store connection lives for the whole process and
	// is shared across invocations
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}

	// Initialize Prometheus metrics
	services.InitMetrics()
	log.Println("✅ Prometheus metrics initialized")

	// Pick the daily analyzer behind the pluggable seam
	var analyzer services.Analyzer
	switch cfg.Analyzer {
	case config.AnalyzerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("❌ OPENAI_API_KEY is required when ANALYZER=openai")
		}
		analyzer = services.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIRPM)
		log.Printf("✅ OpenAI analyzer initialized (model: %s)", cfg.OpenAIModel)
	case config.AnalyzerPlaceholder:
		analyzer = services.NewPlaceholderAnalyzer()
		log.Println("✅ Placeholder analyzer initialized")
	default:
		log.Fatalf("❌ Unknown ANALYZER value: %q (expected %q or %q)",
			cfg.Analyzer, config.AnalyzerPlaceholder, config.AnalyzerOpenAI)
	}

	// Initialize the pipeline services
	articleStore := services.NewArticleStore(mongoDB)
	indexStore := services.NewIndexStore(mongoDB)
	builder := services.NewIndexBuilderService(articleStore, indexStore, analyzer)
	log.Println("✅ Index builder initialized")

	// Optional scheduled rebuilds
	var scheduler *services.SchedulerService
	if cfg.RebuildCron != "" {
		scheduler, err = services.NewSchedulerService(builder, cfg.RebuildCron)
		if err != nil {
			log.Fatalf("❌ Failed to create rebuild scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("❌ Failed to start rebuild scheduler: %v", err)
		}
	} else {
		log.Println("⚠️  REBUILD_CRON not set - scheduled rebuilds disabled (on-demand only)")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Dialogue Index Builder v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 900 * time.Second, // full rebuilds over long histories run synchronously
		IdleTimeout:  120 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("dialogue_index_builder")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Handlers
	indexHandler := handlers.NewIndexHandler(builder)
	healthHandler := handlers.NewHealthHandler(mongoDB)

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Post("/api/index/rebuild", indexHandler.HandleRebuild)
	app.Get("/api/index/status", indexHandler.HandleStatus)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️ Error stopping scheduler: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
