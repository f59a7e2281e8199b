package testhelpers

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// Ptr returns a pointer to v, for nullable model columns.
func Ptr[T any](v T) *T {
	return &v
}

// RecipeFixture is a recipe together with the ingredient names it uses.
type RecipeFixture struct {
	models.Recipe
	Ingredients []string
}

// SeedRecipes inserts recipes, their ingredients and the membership rows.
// Ingredient names are shared across recipes.
func SeedRecipes(t *testing.T, db *gorm.DB, fixtures ...RecipeFixture) {
	t.Helper()

	ingredientIDs := map[string]int64{}
	for _, f := range fixtures {
		recipe := f.Recipe
		if err := db.Create(&recipe).Error; err != nil {
			t.Fatalf("failed to seed recipe %q: %v", recipe.Name, err)
		}

		for _, name := range f.Ingredients {
			key := strings.ToLower(name)
			id, ok := ingredientIDs[key]
			if !ok {
				ingredient := models.Ingredient{Name: name}
				if err := db.Where(models.Ingredient{Name: name}).FirstOrCreate(&ingredient).Error; err != nil {
					t.Fatalf("failed to seed ingredient %q: %v", name, err)
				}
				id = ingredient.ID
				ingredientIDs[key] = id
			}

			link := models.RecipeIngredient{RecipeID: recipe.ID, IngredientID: id}
			if err := db.Create(&link).Error; err != nil {
				t.Fatalf("failed to link %q to recipe %d: %v", name, recipe.ID, err)
			}
		}
	}
}

// SeedReviews inserts rating rows.
func SeedReviews(t *testing.T, db *gorm.DB, reviews ...models.Review) {
	t.Helper()
	if len(reviews) == 0 {
		return
	}
	if err := db.Create(&reviews).Error; err != nil {
		t.Fatalf("failed to seed reviews: %v", err)
	}
}

// Rate is shorthand for a review row.
func Rate(author, recipe int64, rating float64) models.Review {
	return models.Review{AuthorID: author, RecipeID: recipe, Rating: rating}
}
