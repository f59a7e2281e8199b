package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
	"github.com/pdg-16-2025/homeal/backend/internal/service"
	"github.com/pdg-16-2025/homeal/backend/internal/testhelpers"
)

func seedToastAndSalad(t *testing.T, db *gorm.DB) {
	t.Helper()
	testhelpers.SeedRecipes(t, db,
		testhelpers.RecipeFixture{
			Recipe:      models.Recipe{ID: 1, Name: "Tomato Cheese Toast", TotalTime: testhelpers.Ptr[int64](10), Images: testhelpers.Ptr("https://img/toast.jpg")},
			Ingredients: []string{"Tomato", "cheese", "bread"},
		},
		testhelpers.RecipeFixture{
			Recipe:      models.Recipe{ID: 2, Name: "Chicken Salad"},
			Ingredients: []string{"chicken", "lettuce"},
		},
	)
}

func TestLeftoverRecommend_TomatoCheese(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	seedToastAndSalad(t, db)
	svc := service.NewLeftoverService(db, zap.NewNop())

	recs, err := svc.Recommend(context.Background(), []service.LeftoverIngredient{
		{Name: "tomato"},
		{Name: "cheese"},
	}, 5)

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].ID)
	assert.Equal(t, "Tomato Cheese Toast", recs[0].Name)
	assert.Equal(t, int64(10), recs[0].TotalTime)
	assert.Equal(t, "https://img/toast.jpg", recs[0].ImageURL)
	require.NotNil(t, recs[0].MatchScore)
	assert.GreaterOrEqual(t, *recs[0].MatchScore, 0.66)
	assert.InDelta(t, 0.67, *recs[0].MatchScore, 1e-9)
}

func TestLeftoverRecommend_PriorityBonus(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	seedToastAndSalad(t, db)

	now := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
	svc := service.NewLeftoverService(db, zap.NewNop()).WithClock(func() time.Time { return now })

	recs, err := svc.Recommend(context.Background(), []service.LeftoverIngredient{
		{Name: "tomato", ExpirationDate: "2024-01-15"},
		{Name: "cheese", ExpirationDate: "2024-01-30"},
	}, 5)

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 0.87, *recs[0].MatchScore, 1e-9)
}

func TestLeftoverRecommend_EmptyLeftovers(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	seedToastAndSalad(t, db)
	svc := service.NewLeftoverService(db, zap.NewNop())

	recs, err := svc.Recommend(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotNil(t, recs)
}

func TestLeftoverRecommend_SortedDescending(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	testhelpers.SeedRecipes(t, db,
		testhelpers.RecipeFixture{Recipe: models.Recipe{ID: 1, Name: "Half"}, Ingredients: []string{"egg", "flour"}},
		testhelpers.RecipeFixture{Recipe: models.Recipe{ID: 2, Name: "Full"}, Ingredients: []string{"egg", "milk"}},
		testhelpers.RecipeFixture{Recipe: models.Recipe{ID: 3, Name: "Third"}, Ingredients: []string{"egg", "salt", "water"}},
	)
	svc := service.NewLeftoverService(db, zap.NewNop())

	recs, err := svc.Recommend(context.Background(), []service.LeftoverIngredient{{Name: "egg"}, {Name: "milk"}}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, []int64{2, 1, 3}, []int64{recs[0].ID, recs[1].ID, recs[2].ID})
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, *recs[i-1].MatchScore, *recs[i].MatchScore)
	}
}

func TestMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		recipe    []string
		available []string
		want      float64
	}{
		{"no ingredients", nil, []string{"egg"}, 0},
		{"all matched", []string{"egg", "milk"}, []string{"egg", "milk"}, 1},
		{"substring match", []string{"cherry tomatoes", "basil"}, []string{"tomato"}, 0.5},
		{"nothing matched", []string{"chicken", "lettuce"}, []string{"tomato", "cheese"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, service.MatchScore(tt.recipe, tt.available), 1e-9)
		})
	}
}

func TestPriorityIngredients(t *testing.T) {
	now := time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC)

	got := service.PriorityIngredients([]service.LeftoverIngredient{
		{Name: " Tomato ", ExpirationDate: "2024-01-15"},
		{Name: "milk", ExpirationDate: "2024-01-10"},
		{Name: "rice", ExpirationDate: "2024-02-01"},
		{Name: "cheese", ExpirationDate: "not a date"},
		{Name: "basil"},
		{Name: "yogurt", ExpirationDate: "2024-01-17T18:00:00"},
	}, now)

	assert.Equal(t, []string{"tomato", "milk", "yogurt"}, got)
}

func TestPriorityBonus(t *testing.T) {
	assert.InDelta(t, 0.4, service.PriorityBonus([]string{"tomato", "tomato paste", "bread"}, []string{"tomato"}), 1e-9)
	assert.Zero(t, service.PriorityBonus([]string{"tomato"}, nil))
}

func TestParseLeftoverRequest(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := service.ParseLeftoverRequest([]byte(`{"other": []}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("empty list", func(t *testing.T) {
		items, err := service.ParseLeftoverRequest([]byte(`{"ingredients": []}`))
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("full item", func(t *testing.T) {
		items, err := service.ParseLeftoverRequest([]byte(`{"ingredients": [{"name": "tomato", "quantity": 2, "unit": "pieces", "expiration_date": "2024-01-15"}]}`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "tomato", items[0].Name)
		require.NotNil(t, items[0].Quantity)
		assert.Equal(t, 2.0, *items[0].Quantity)
	})

	t.Run("nameless item", func(t *testing.T) {
		_, err := service.ParseLeftoverRequest([]byte(`{"ingredients": [{"quantity": 1}]}`))
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}
