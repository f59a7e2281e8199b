// Package metrics holds the Prometheus collectors of the recommender.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RecommendationRequests.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeInternal     = "internal_error"
)

var (
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeal_recommendation_requests_total",
			Help: "Total number of recommendation requests by strategy and outcome",
		},
		[]string{"type", "outcome"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homeal_recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// RelaxationSteps counts how often each constraint relaxation step ran.
	// step is one of "calories", "rating" or "essential".
	RelaxationSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homeal_relaxation_steps_total",
			Help: "Total number of dietary constraint relaxation steps taken",
		},
		[]string{"step"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homeal_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// RecordRecommendation records one finished recommendation request.
func RecordRecommendation(strategy, outcome string, duration time.Duration) {
	RecommendationRequests.WithLabelValues(strategy, outcome).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func RecordRelaxationStep(step string) {
	RelaxationSteps.WithLabelValues(step).Inc()
}

func RecordRateLimited() {
	RateLimited.Inc()
}
