package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// AutoMigrate creates the catalogue tables. The recommendation engine only
// reads; this exists for local fixtures and the seed tool.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Recipe{},
		&models.Ingredient{},
		&models.RecipeIngredient{},
		&models.Review{},
	); err != nil {
		return fmt.Errorf("failed to migrate catalogue tables: %w", err)
	}
	return nil
}
