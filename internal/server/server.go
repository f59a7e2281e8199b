package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/api"
	"github.com/pdg-16-2025/homeal/backend/internal/middleware"
	"github.com/pdg-16-2025/homeal/backend/internal/service"
)

const (
	maxBodySize     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *gorm.DB
	log    *zap.Logger
}

// New wires the recommendation service and its routes. redisClient may be
// nil, in which case rate limiting is kept in process.
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *Server {
	gin.SetMode(config.GetEnvironment().GinMode())

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.CORSOrigins),
		middleware.BodySizeLimit(maxBodySize),
	)

	recommender := service.NewRecommendationService(db, log, service.Options{
		ReviewLogPath: cfg.ReviewLogPath,
		DefaultNumber: cfg.DefaultNumber,
		MaxNumber:     cfg.MaxNumber,
	})

	var limiter gin.HandlerFunc
	if cfg.RateLimitRequests > 0 {
		limiter = middleware.NewRecommendationRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow, log).RateLimitMiddleware()
	}

	api.RegisterRoutes(router, db, recommender, cfg.RequestTimeout, limiter)

	return &Server{
		router: router,
		db:     db,
		log:    log,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router exposes the gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
