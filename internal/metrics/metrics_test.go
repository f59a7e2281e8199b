package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRecommendation(t *testing.T) {
	before := testutil.ToFloat64(RecommendationRequests.WithLabelValues("nutriments", OutcomeSuccess))

	RecordRecommendation("nutriments", OutcomeSuccess, 15*time.Millisecond)
	RecordRecommendation("nutriments", OutcomeSuccess, 30*time.Millisecond)

	after := testutil.ToFloat64(RecommendationRequests.WithLabelValues("nutriments", OutcomeSuccess))
	assert.Equal(t, before+2, after)
	assert.Positive(t, testutil.CollectAndCount(RecommendationDuration))
}

func TestRecordRelaxationStep(t *testing.T) {
	tests := []string{"calories", "rating", "essential"}
	for _, step := range tests {
		t.Run(step, func(t *testing.T) {
			before := testutil.ToFloat64(RelaxationSteps.WithLabelValues(step))
			RecordRelaxationStep(step)
			assert.Equal(t, before+1, testutil.ToFloat64(RelaxationSteps.WithLabelValues(step)))
		})
	}
}

func TestRecordRateLimited(t *testing.T) {
	before := testutil.ToFloat64(RateLimited)
	RecordRateLimited()
	assert.Equal(t, before+1, testutil.ToFloat64(RateLimited))
}
