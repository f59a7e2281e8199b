package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/internal/service"
	"github.com/pdg-16-2025/homeal/backend/internal/testhelpers"
)

func TestRecommend_Postgres(t *testing.T) {
	db := testhelpers.SetupPostgresDB(t)
	seedToastAndSalad(t, db)
	testhelpers.SeedReviews(t, db,
		testhelpers.Rate(1, 1, 5),
		testhelpers.Rate(2, 1, 5),
		testhelpers.Rate(2, 2, 4),
	)
	svc := service.NewRecommendationService(db, zap.NewNop(), service.Options{})
	ctx := context.Background()

	t.Run("ingredients", func(t *testing.T) {
		env := svc.Recommend(ctx, "ingredients", []byte(tomatoCheese), 5)
		require.False(t, env.Failed(), env.Error)
		assert.Equal(t, []int64{1, 2}, recommendationIDs(env.Recommendations))
		require.NotNil(t, env.Recommendations[0].MatchScore)
		assert.InDelta(t, 0.67, *env.Recommendations[0].MatchScore, 1e-9)
	})

	t.Run("random with blacklist", func(t *testing.T) {
		env := svc.Recommend(ctx, "random", []byte(`{"blacklisted_ingredients": ["bread"]}`), 5)
		require.False(t, env.Failed(), env.Error)
		assert.Equal(t, []int64{2}, recommendationIDs(env.Recommendations))
	})

	t.Run("nutriments", func(t *testing.T) {
		env := svc.Recommend(ctx, "nutriments", []byte(`{"age": 30, "gender": "female", "weight": 60, "height": 165}`), 2)
		require.False(t, env.Failed(), env.Error)
		assert.Len(t, env.Recommendations, 2)
	})
}
