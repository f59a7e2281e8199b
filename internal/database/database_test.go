package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdg-16-2025/homeal/backend/config"
	"github.com/pdg-16-2025/homeal/backend/internal/database"
	"github.com/pdg-16-2025/homeal/backend/internal/models"
	"github.com/pdg-16-2025/homeal/backend/internal/testhelpers"
)

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver: config.DriverSQLite,
		DBPath:   filepath.Join(t.TempDir(), "homeal.db"),
	}

	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.AutoMigrate(db))
	assert.NoError(t, database.Ping(context.Background(), db))

	recipe := models.Recipe{ID: 1, Name: "Toast"}
	require.NoError(t, db.Create(&recipe).Error)

	var count int64
	require.NoError(t, db.Model(&models.Recipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := database.Open(&config.Config{DBDriver: "mysql"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestPostgresCatalogue(t *testing.T) {
	db := testhelpers.SetupPostgresDB(t)

	testhelpers.SeedRecipes(t, db, testhelpers.RecipeFixture{
		Recipe:      models.Recipe{ID: 7, Name: "Tomato Cheese Toast"},
		Ingredients: []string{"tomato", "cheese", "bread"},
	})

	var links int64
	require.NoError(t, db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", 7).Count(&links).Error)
	assert.Equal(t, int64(3), links)
	assert.NoError(t, database.Ping(context.Background(), db))
}
