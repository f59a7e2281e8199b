package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RegisterRoutes registers all API routes. limiter, when not nil, guards the
// recommendation routes.
func RegisterRoutes(router *gin.Engine, db *gorm.DB, recommender Recommender, timeout time.Duration, limiter gin.HandlerFunc) {
	health := NewHealthHandler(db)
	router.GET("/health", health.HealthCheck)
	router.GET("/api/health", health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var mw []gin.HandlerFunc
	if limiter != nil {
		mw = append(mw, limiter)
	}

	v1 := router.Group("/api/v1")
	{
		NewRecommendationHandler(recommender, timeout).RegisterRoutes(v1, mw...)
	}
}
