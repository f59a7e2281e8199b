package service

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// Recommendation is one ranked recipe. Score fields are set only by the
// strategy that produces them.
type Recommendation struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TotalTime int64  `json:"total_time"`
	ImageURL  string `json:"image_url"`

	MatchScore *float64 `json:"match_score,omitempty"`

	NutrientScore       *float64 `json:"nutrient_score,omitempty"`
	CombinedScore       *float64 `json:"combined_score,omitempty"`
	Calories            *float64 `json:"calories,omitempty"`
	ProteinContent      *float64 `json:"protein_content,omitempty"`
	CarbohydrateContent *float64 `json:"carbohydrate_content,omitempty"`
	FatContent          *float64 `json:"fat_content,omitempty"`

	PreferenceScore   *float64 `json:"preference_score,omitempty"`
	AvgRating         *float64 `json:"avg_rating,omitempty"`
	ReviewCount       *int64   `json:"review_count,omitempty"`
	SimilarUsersCount *int     `json:"similar_users_count,omitempty"`
}

// summarize converts a catalogue row into an unscored recommendation.
func summarize(r models.Recipe) Recommendation {
	rec := Recommendation{
		ID:        r.ID,
		Name:      r.Name,
		TotalTime: r.Minutes(),
		ImageURL:  r.ImageURL(),
		Calories:  r.Calories,
	}
	rec.AvgRating = floatPtr(valueOr(r.AggregatedRating, 0))
	rec.ReviewCount = int64Ptr(int64ValueOr(r.ReviewCount, 0))
	return rec
}

// idBatchSize keeps IN lists well under driver parameter limits.
const idBatchSize = 500

// loadRecipes returns the catalogue rows for ids, keyed by id. Missing ids
// are absent from the map.
func loadRecipes(ctx context.Context, db *gorm.DB, ids []int64) (map[int64]models.Recipe, error) {
	found := make(map[int64]models.Recipe, len(ids))
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))

		var rows []models.Recipe
		if err := db.WithContext(ctx).Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			found[r.ID] = r
		}
	}
	return found, nil
}

type ingredientRow struct {
	RecipeID int64
	Name     string
}

// loadIngredientNames returns the lowercased, trimmed ingredient names of each recipe.
func loadIngredientNames(ctx context.Context, db *gorm.DB, ids []int64) (map[int64][]string, error) {
	names := make(map[int64][]string, len(ids))
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))

		var rows []ingredientRow
		err := db.WithContext(ctx).Raw(`
			SELECT ri.recipe_id AS recipe_id, i.name AS name
			FROM "RecipeIngredient" ri
			JOIN "Ingredient" i ON ri.ingredient_id = i.id
			WHERE ri.recipe_id IN ?
			ORDER BY ri.recipe_id, ri.id`, ids[start:end]).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			names[row.RecipeID] = append(names[row.RecipeID], normalize(row.Name))
		}
	}
	return names, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func floatPtr(v float64) *float64 {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func int64ValueOr(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}
