package main

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
)

// connectRedis returns nil without error when Redis is not configured.
func connectRedis(cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	return database.NewRedisClient(cfg, logger)
}
