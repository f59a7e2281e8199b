// Command seed_recipes loads a small demo catalogue, or a JSON file of
// recipes, into the configured store.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
	"github.com/pdg-16-2025/homeal/backend/internal/logging"
	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// seedRecipe is one entry of a seed file.
type seedRecipe struct {
	models.Recipe
	Ingredients []string        `json:"ingredients"`
	Reviews     []models.Review `json:"reviews"`
}

func main() {
	file := flag.String("file", "", "JSON array of recipes to load instead of the demo set")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	recipes := demoRecipes()
	if *file != "" {
		if recipes, err = readSeedFile(*file); err != nil {
			logger.Fatal("failed to read seed file", zap.String("file", *file), zap.Error(err))
		}
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return seed(tx, recipes)
	}); err != nil {
		logger.Fatal("failed to seed recipes", zap.Error(err))
	}
	logger.Info("seeded recipes", zap.Int("count", len(recipes)))
}

func readSeedFile(path string) ([]seedRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recipes []seedRecipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func seed(tx *gorm.DB, recipes []seedRecipe) error {
	ingredientIDs := map[string]int64{}
	for _, r := range recipes {
		recipe := r.Recipe
		if err := tx.Save(&recipe).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}

		for _, name := range r.Ingredients {
			key := strings.ToLower(strings.TrimSpace(name))
			id, ok := ingredientIDs[key]
			if !ok {
				ingredient := models.Ingredient{Name: key}
				if err := tx.Where(models.Ingredient{Name: key}).FirstOrCreate(&ingredient).Error; err != nil {
					return err
				}
				id = ingredient.ID
				ingredientIDs[key] = id
			}
			if err := tx.Create(&models.RecipeIngredient{RecipeID: recipe.ID, IngredientID: id}).Error; err != nil {
				return err
			}
		}

		for _, review := range r.Reviews {
			review.ID = 0
			review.RecipeID = recipe.ID
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func demoRecipes() []seedRecipe {
	return []seedRecipe{
		{
			Recipe: models.Recipe{ID: 1, Name: "Tomato Cheese Toast", TotalTime: ptr[int64](10),
				Keywords: ptr("Breakfast, Vegetarian, < 15 Mins"), Calories: ptr(320.0),
				ProteinContent: ptr(14.0), CarbohydrateContent: ptr(34.0), FatContent: ptr(14.0),
				FiberContent: ptr(3.0), SodiumContent: ptr(540.0), AggregatedRating: ptr(4.5), ReviewCount: ptr[int64](2)},
			Ingredients: []string{"tomato", "cheese", "bread"},
			Reviews:     []models.Review{{AuthorID: 101, Rating: 5}, {AuthorID: 102, Rating: 4}},
		},
		{
			Recipe: models.Recipe{ID: 2, Name: "Chicken Salad", TotalTime: ptr[int64](20),
				Keywords: ptr("Chicken, Lunch, Low Carb"), Calories: ptr(410.0),
				ProteinContent: ptr(38.0), CarbohydrateContent: ptr(8.0), FatContent: ptr(24.0),
				FiberContent: ptr(4.0), SodiumContent: ptr(380.0), AggregatedRating: ptr(4.0), ReviewCount: ptr[int64](2)},
			Ingredients: []string{"chicken", "lettuce", "olive oil"},
			Reviews:     []models.Review{{AuthorID: 101, Rating: 4}, {AuthorID: 103, Rating: 4}},
		},
		{
			Recipe: models.Recipe{ID: 3, Name: "Chickpea Curry", TotalTime: ptr[int64](35),
				Keywords: ptr("Vegan, Curry, Dinner"), Calories: ptr(620.0),
				ProteinContent: ptr(22.0), CarbohydrateContent: ptr(88.0), FatContent: ptr(18.0),
				FiberContent: ptr(16.0), SodiumContent: ptr(450.0), AggregatedRating: ptr(4.8), ReviewCount: ptr[int64](3)},
			Ingredients: []string{"chickpeas", "coconut milk", "onion", "curry paste"},
			Reviews:     []models.Review{{AuthorID: 101, Rating: 5}, {AuthorID: 102, Rating: 5}, {AuthorID: 103, Rating: 4}},
		},
		{
			Recipe: models.Recipe{ID: 4, Name: "Peanut Noodles", TotalTime: ptr[int64](15),
				Keywords: ptr("Asian, Vegan, Quick"), Calories: ptr(700.0),
				ProteinContent: ptr(24.0), CarbohydrateContent: ptr(90.0), FatContent: ptr(28.0),
				FiberContent: ptr(6.0), SodiumContent: ptr(900.0), AggregatedRating: ptr(4.2), ReviewCount: ptr[int64](1)},
			Ingredients: []string{"noodles", "peanut butter", "soy sauce", "scallion"},
			Reviews:     []models.Review{{AuthorID: 102, Rating: 4}},
		},
		{
			Recipe: models.Recipe{ID: 5, Name: "Salmon Rice Bowl", TotalTime: ptr[int64](25),
				Keywords: ptr("Fish, Seafood, Dinner"), Calories: ptr(680.0),
				ProteinContent: ptr(40.0), CarbohydrateContent: ptr(70.0), FatContent: ptr(22.0),
				FiberContent: ptr(5.0), SodiumContent: ptr(600.0), AggregatedRating: ptr(4.6), ReviewCount: ptr[int64](2)},
			Ingredients: []string{"salmon", "rice", "cucumber", "soy sauce"},
			Reviews:     []models.Review{{AuthorID: 103, Rating: 5}, {AuthorID: 102, Rating: 5}},
		},
	}
}
