package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
	"github.com/pdg-16-2025/homeal/backend/internal/service"
	"github.com/pdg-16-2025/homeal/backend/internal/testhelpers"
)

func seedDietCatalogue(t *testing.T, db *gorm.DB) []models.Recipe {
	t.Helper()
	fixtures := []testhelpers.RecipeFixture{
		{
			Recipe: models.Recipe{ID: 1, Name: "Vegan Curry", Keywords: testhelpers.Ptr("Vegan, Curry"),
				Calories: testhelpers.Ptr(400.0), AggregatedRating: testhelpers.Ptr(4.5)},
			Ingredients: []string{"chickpeas", "coconut milk"},
		},
		{
			Recipe: models.Recipe{ID: 2, Name: "Beef Stew", Keywords: testhelpers.Ptr("Beef, Stew"),
				Calories: testhelpers.Ptr(800.0), AggregatedRating: testhelpers.Ptr(4.0)},
			Ingredients: []string{"beef", "carrot"},
		},
		{
			Recipe: models.Recipe{ID: 3, Name: "Peanut Noodles", Keywords: testhelpers.Ptr("Asian, Vegan"),
				Calories: testhelpers.Ptr(600.0), AggregatedRating: testhelpers.Ptr(3.0)},
			Ingredients: []string{"peanut butter", "noodles"},
		},
		{
			Recipe: models.Recipe{ID: 4, Name: "Cheese Omelette", Keywords: testhelpers.Ptr("Breakfast, Vegetarian"),
				Calories: testhelpers.Ptr(350.0), AggregatedRating: testhelpers.Ptr(2.0)},
			Ingredients: []string{"egg", "cheese"},
		},
		{
			Recipe:      models.Recipe{ID: 5, Name: "Plain Rice"},
			Ingredients: []string{"rice", "water"},
		},
		{
			Recipe: models.Recipe{ID: 6, Name: "Garlic Bread", Keywords: testhelpers.Ptr("Bread, Side"),
				Calories: testhelpers.Ptr(300.0), AggregatedRating: testhelpers.Ptr(5.0)},
			Ingredients: []string{"flour", "garlic", "butter"},
		},
	}
	testhelpers.SeedRecipes(t, db, fixtures...)

	recipes := make([]models.Recipe, len(fixtures))
	for i, f := range fixtures {
		recipes[i] = f.Recipe
	}
	return recipes
}

func recipeIDs(recipes []models.Recipe) []int64 {
	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	return ids
}

func recommendationIDs(recs []service.Recommendation) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func TestMatchesRegime(t *testing.T) {
	tests := []struct {
		regime   string
		keywords string
		want     bool
	}{
		{"vegan", "Vegan, Curry", true},
		{"vegan", "Beef, Stew", false},
		{"Vegan", "VEGAN", true},
		{"vegetarian", "Beef, Stew", false},
		{"vegetarian", "Chicken Breast", false},
		{"vegetarian", "Side Dish", true},
		{"vegetarian", "Vegetarian, Bacon", true},
		{"gluten_free", "Bread, Side", false},
		{"gluten_free", "Salad", true},
		{"gluten_free", "Gluten-Free, Bread", true},
		{"keto", "Low Carb, Dinner", true},
		{"keto", "Dessert", false},
		{"pescatarian", "Seafood", true},
		{"low_sodium", "Soup", false},
		{"martian", "Beef", true},
		{"", "Beef", true},
		{"none", "Beef", true},
	}
	for _, tt := range tests {
		t.Run(tt.regime+"/"+tt.keywords, func(t *testing.T) {
			assert.Equal(t, tt.want, service.MatchesRegime(tt.keywords, tt.regime))
		})
	}
}

func TestDietaryFilterExcludes(t *testing.T) {
	f := service.DietaryFilter{
		BlacklistedIngredients: []string{"Chicken"},
		Allergies:              []string{"nuts", "moon dust"},
	}

	assert.True(t, f.Excludes([]string{"chicken breast", "rice"}))
	assert.True(t, f.Excludes([]string{"roasted almonds"}))
	assert.False(t, f.Excludes([]string{"rice", "beans"}))
	assert.False(t, service.DietaryFilter{}.Excludes([]string{"peanut"}))
	assert.False(t, service.DietaryFilter{BlacklistedIngredients: []string{" "}}.Excludes([]string{"rice"}))
}

func TestParseDietaryFilter(t *testing.T) {
	f, err := service.ParseDietaryFilter([]byte(`{"dietary_regime": "vegan", "allergies": ["nuts"], "max_calories": 500}`))
	require.NoError(t, err)
	assert.Equal(t, "vegan", f.Regime)
	assert.Equal(t, []string{"nuts"}, f.Allergies)
	assert.Equal(t, []string{}, f.BlacklistedIngredients)
	require.NotNil(t, f.MaxCalories)
	assert.Equal(t, 500.0, *f.MaxCalories)
	assert.Nil(t, f.MinRating)

	_, err = service.ParseDietaryFilter([]byte(`{"allergies": "nuts"}`))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestFilterRecipes(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	recipes := seedDietCatalogue(t, db)
	rf := service.NewRecipeFilter(db, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name   string
		filter service.DietaryFilter
		want   []int64
	}{
		{"no constraints", service.DietaryFilter{}, []int64{1, 2, 3, 4, 5, 6}},
		{"vegan without nuts", service.DietaryFilter{Regime: "vegan", Allergies: []string{"nuts"}}, []int64{1}},
		{"vegetarian under 500 kcal", service.DietaryFilter{Regime: "vegetarian", MaxCalories: testhelpers.Ptr(500.0)}, []int64{1, 4, 5, 6}},
		{
			"vegetarian under 500 kcal rated 3+",
			service.DietaryFilter{Regime: "vegetarian", MaxCalories: testhelpers.Ptr(500.0), MinRating: testhelpers.Ptr(3.0)},
			[]int64{1, 5, 6},
		},
		{"blacklist butter and dairy", service.DietaryFilter{BlacklistedIngredients: []string{"butter"}, Allergies: []string{"dairy"}}, []int64{2, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rf.FilterRecipes(ctx, recipes, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, recipeIDs(got))
		})
	}
}

func TestQuery(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	seedDietCatalogue(t, db)
	rf := service.NewRecipeFilter(db, zap.NewNop())
	ctx := context.Background()

	t.Run("regime keywords", func(t *testing.T) {
		got, err := rf.Query(ctx, service.DietaryFilter{Regime: "vegan"}, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 3}, recipeIDs(got))
	})

	t.Run("regime with allergy", func(t *testing.T) {
		got, err := rf.Query(ctx, service.DietaryFilter{Regime: "vegan", Allergies: []string{"nuts"}}, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, recipeIDs(got))
	})

	t.Run("calorie ceiling keeps unknown calories", func(t *testing.T) {
		got, err := rf.Query(ctx, service.DietaryFilter{MaxCalories: testhelpers.Ptr(500.0)}, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 4, 5, 6}, recipeIDs(got))
	})

	t.Run("limit", func(t *testing.T) {
		got, err := rf.Query(ctx, service.DietaryFilter{}, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		got, err := rf.Query(ctx, service.DietaryFilter{}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEnsureMinimum(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	seedDietCatalogue(t, db)
	rf := service.NewRecipeFilter(db, zap.NewNop())
	ctx := context.Background()

	t.Run("already enough", func(t *testing.T) {
		have := []service.Recommendation{{ID: 1}, {ID: 2}, {ID: 3}}
		got, err := rf.EnsureMinimum(ctx, have, service.DietaryFilter{MaxCalories: testhelpers.Ptr(1.0)}, 3)
		require.NoError(t, err)
		assert.Equal(t, have, got)
	})

	t.Run("relaxes bounds but never blacklist", func(t *testing.T) {
		f := service.DietaryFilter{
			BlacklistedIngredients: []string{"butter"},
			MaxCalories:            testhelpers.Ptr(100.0),
			MinRating:              testhelpers.Ptr(4.9),
		}
		got, err := rf.EnsureMinimum(ctx, nil, f, 3)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 4, 5}, recommendationIDs(got))
	})

	t.Run("keeps existing recipes first", func(t *testing.T) {
		have := []service.Recommendation{{ID: 4, Name: "Cheese Omelette"}}
		got, err := rf.EnsureMinimum(ctx, have, service.DietaryFilter{Regime: "vegan"}, 3)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, int64(4), got[0].ID)
		assert.ElementsMatch(t, []int64{4, 1, 3}, recommendationIDs(got))
	})

	t.Run("catalogue exhausted", func(t *testing.T) {
		got, err := rf.EnsureMinimum(ctx, nil, service.DietaryFilter{Regime: "vegan", Allergies: []string{"nuts"}}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, recommendationIDs(got))
	})

	t.Run("no allergen across relaxation steps", func(t *testing.T) {
		f := service.DietaryFilter{Allergies: []string{"dairy", "nuts"}, MaxCalories: testhelpers.Ptr(10.0), MinRating: testhelpers.Ptr(5.0)}
		for i := 0; i < 10; i++ {
			got, err := rf.EnsureMinimum(ctx, nil, f, 3)
			require.NoError(t, err)
			assert.NotContains(t, recommendationIDs(got), int64(3))
			assert.NotContains(t, recommendationIDs(got), int64(4))
			assert.NotContains(t, recommendationIDs(got), int64(6))
		}
	})
}
