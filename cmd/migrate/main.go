// Command migrate creates the catalogue tables in an empty store. The
// recommender itself never writes; this exists for local development.
package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
	"github.com/pdg-16-2025/homeal/backend/internal/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Only check that the store is reachable")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if *dryRun {
		logger.Info("database reachable", zap.String("driver", cfg.DBDriver))
		return
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}
	logger.Info("catalogue schema is up to date", zap.String("driver", cfg.DBDriver))
}
