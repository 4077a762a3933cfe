package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/zombar/imagesearch"
	"github.com/zombar/imagesearch/api"
	"github.com/zombar/imagesearch/models"
	"github.com/zombar/imagesearch/storage"
	"github.com/zombar/imagesearch/tracing"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("image search service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("imagesearch")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultStoragePath := getEnv("STORAGE_BASE_PATH", "./storage")
	defaultLLMURL := getEnv("LLM_URL", models.DefaultSettings().LLMURL)
	defaultLLMModel := getEnv("LLM_MODEL", models.DefaultSettings().LLMModel)
	defaultSearxngURL := getEnv("SEARXNG_URL", "http://localhost:8080")

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	llmURL := flag.String("llm-url", defaultLLMURL, "OpenAI-compatible chat completions URL for query generation")
	llmModel := flag.String("llm-model", defaultLLMModel, "Model name for query generation")
	searxngURL := flag.String("searxng-url", defaultSearxngURL, "Preferred SearXNG instance")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	disableHeadless := flag.Bool("disable-headless", false, "Disable the headless browser, use HTTP fallbacks")
	flag.Parse()

	// PostgreSQL is optional, without it run history lives in memory
	databaseDSN := getEnv("DATABASE_URL", "")
	if databaseDSN != "" {
		logger.Info("using PostgreSQL database for run history")
	} else {
		logger.Warn("DATABASE_URL not set, run history will not survive restarts")
	}

	engineConfig := imagesearch.DefaultConfig()
	engineConfig.SearxngURL = *searxngURL
	engineConfig.DisableHeadless = *disableHeadless
	if key := os.Getenv("PIXABAY_KEY"); key != "" {
		engineConfig.PixabayKey = key
	}
	if key := os.Getenv("TENOR_KEY"); key != "" {
		engineConfig.TenorKey = key
	}

	// Create server configuration
	config := api.Config{
		Addr:         ":" + *port,
		DatabaseDSN:  databaseDSN,
		EngineConfig: engineConfig,
		StoragePath:  defaultStoragePath,
		S3: storage.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", ""),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "") == "true",
		},
		LLMURL:      *llmURL,
		LLMModel:    *llmModel,
		CORSEnabled: !*disableCORS,
	}

	// Create server
	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server in a goroutine
	go func() {
		logger.Info("image search service starting",
			"port", *port,
			"storage_path", defaultStoragePath,
			"s3_bucket", config.S3.Bucket,
			"llm_url", *llmURL,
			"llm_model", *llmModel,
			"searxng_url", *searxngURL,
			"headless_disabled", *disableHeadless,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
