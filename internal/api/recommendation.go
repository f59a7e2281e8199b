package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdg-16-2025/homeal/backend/internal/service"
)

// Recommender serves recommendation requests.
type Recommender interface {
	Recommend(ctx context.Context, strategy string, data []byte, number int) service.Envelope
}

// RecommendationHandler exposes the recommender over HTTP.
type RecommendationHandler struct {
	recommender Recommender
	timeout     time.Duration
}

// NewRecommendationHandler creates a handler. A zero timeout leaves the
// request context unchanged.
func NewRecommendationHandler(recommender Recommender, timeout time.Duration) *RecommendationHandler {
	return &RecommendationHandler{recommender: recommender, timeout: timeout}
}

// RegisterRoutes registers the recommendation routes behind mw.
func (h *RecommendationHandler) RegisterRoutes(router *gin.RouterGroup, mw ...gin.HandlerFunc) {
	recommendations := router.Group("/recommendations", mw...)
	{
		recommendations.GET("", h.GetRecommendations)
		recommendations.POST("", h.PostRecommendations)
	}
}

// GetRecommendations handles GET /recommendations?type=&data=&number=.
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	data := c.Query("data")
	if data == "" {
		data = "{}"
	}
	h.serve(c, []byte(data))
}

// PostRecommendations handles POST /recommendations?type=&number= with the
// request data as the JSON body.
func (h *RecommendationHandler) PostRecommendations(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input data: " + err.Error(),
			"type":  c.Query("type"),
		})
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	h.serve(c, body)
}

func (h *RecommendationHandler) serve(c *gin.Context, data []byte) {
	strategy := c.Query("type")

	number := 0
	if raw := c.Query("number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid input data: number must be an integer",
				"type":  strategy,
			})
			return
		}
		number = n
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	env := h.recommender.Recommend(ctx, strategy, data, number)
	c.JSON(statusFor(env), env)
}

func statusFor(env service.Envelope) int {
	switch env.Kind {
	case service.KindNone:
		return http.StatusOK
	case service.KindInvalidInput, service.KindUnknownStrategy:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
