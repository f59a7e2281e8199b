package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
	"github.com/pdg-16-2025/homeal/backend/internal/logging"
	"github.com/pdg-16-2025/homeal/backend/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open recipe store", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	redisClient, err := connectRedis(cfg, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting in process", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	srv := server.New(cfg, db, redisClient, logger)

	// Serve until an interrupt or terminate signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
