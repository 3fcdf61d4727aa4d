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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"meter-image-backend/config"
	"meter-image-backend/internal/api"
	"meter-image-backend/internal/db"
	"meter-image-backend/internal/dispatch"
	"meter-image-backend/internal/janitor"
	"meter-image-backend/internal/logging"
	"meter-image-backend/internal/storage"
	"meter-image-backend/internal/store"
	"meter-image-backend/internal/upload"
)

func main() {
	// .env is a local development convenience; production sets real
	// environment variables.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on process environment")
	}

	logger, err := logging.NewLogger("meter-image-backend")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized")

	files, err := storage.NewDir(cfg.Storage.Root)
	if err != nil {
		logger.Fatal("failed to prepare storage root", zap.String("root", cfg.Storage.Root), zap.Error(err))
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Collect staging leftovers from crashed uploads in the background.
	janitorSvc := janitor.NewService(&cfg.Storage, files, logger)
	go janitorSvc.Run(ctx)

	// Task dispatch is optional; without a broker, uploads are stored and
	// OCR is left to a later backfill.
	var dispatcher upload.Dispatcher
	var publisher *dispatch.Publisher
	if cfg.Dispatch.Enabled {
		publisher, err = dispatch.NewPublisher(cfg.Dispatch.URL, cfg.Dispatch.Exchange, cfg.Dispatch.RoutingKey, logger)
		if err != nil {
			logger.Fatal("failed to connect to the task broker", zap.Error(err))
		}
		pool := dispatch.NewPool(cfg.Dispatch.WorkerPoolSize, cfg.Dispatch.QueueDepth, publisher, logger)
		pool.Start(ctx)
		dispatcher = pool
		logger.Info("task dispatch enabled",
			zap.String("exchange", cfg.Dispatch.Exchange),
			zap.Int("workers", cfg.Dispatch.WorkerPoolSize))
	}

	uploads := upload.NewService(appStore, files, dispatcher, cfg.Storage.MaxUploadBytes, logger)

	handler := api.NewHandler(appStore, uploads, cfg.Storage.MaxUploadBytes, logger)
	router := api.NewRouter(handler, cfg)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")

	// Drain in-flight uploads before tearing down the dispatch pool so
	// accepted images still get their tasks queued.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown failed", zap.Error(err))
	}

	cancel()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close the task broker connection", zap.Error(err))
		}
	}

	logger.Info("server gracefully stopped")
}
