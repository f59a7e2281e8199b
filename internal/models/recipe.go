package models

// Recipe is a row of the read-only recipe catalogue. Nullable dataset
// columns are pointers.
type Recipe struct {
	ID                  int64    `gorm:"primaryKey;column:id" json:"id"`
	Name                string   `gorm:"column:name;not null" json:"name"`
	AuthorID            *int64   `gorm:"column:author_id" json:"author_id,omitempty"`
	TotalTime           *int64   `gorm:"column:total_time" json:"total_time"`
	Images              *string  `gorm:"column:images" json:"images"`
	Category            *string  `gorm:"column:category" json:"category,omitempty"`
	Keywords            *string  `gorm:"column:keywords" json:"keywords,omitempty"`
	AggregatedRating    *float64 `gorm:"column:aggregated_rating;index" json:"aggregated_rating"`
	ReviewCount         *int64   `gorm:"column:review_count" json:"review_count"`
	Calories            *float64 `gorm:"column:calories" json:"calories"`
	FatContent          *float64 `gorm:"column:fat_content" json:"fat_content"`
	SodiumContent       *float64 `gorm:"column:sodium_content" json:"sodium_content"`
	CarbohydrateContent *float64 `gorm:"column:carbohydrate_content" json:"carbohydrate_content"`
	FiberContent        *float64 `gorm:"column:fiber_content" json:"fiber_content"`
	ProteinContent      *float64 `gorm:"column:protein_content" json:"protein_content"`
}

func (Recipe) TableName() string {
	return "Recipe"
}

// ImageURL returns the stored image reference or "".
func (r Recipe) ImageURL() string {
	if r.Images == nil {
		return ""
	}
	return *r.Images
}

// Minutes returns the total time, 0 when unknown.
func (r Recipe) Minutes() int64 {
	if r.TotalTime == nil {
		return 0
	}
	return *r.TotalTime
}

// KeywordText returns the free-text keyword column or "".
func (r Recipe) KeywordText() string {
	if r.Keywords == nil {
		return ""
	}
	return *r.Keywords
}

// Ingredient is an entry of the ingredient vocabulary.
type Ingredient struct {
	ID   int64  `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
}

func (Ingredient) TableName() string {
	return "Ingredient"
}

// RecipeIngredient links a recipe to one of its ingredients.
type RecipeIngredient struct {
	ID           int64   `gorm:"primaryKey;column:id" json:"id"`
	RecipeID     int64   `gorm:"column:recipe_id;not null;index" json:"recipe_id"`
	IngredientID int64   `gorm:"column:ingredient_id;not null;index" json:"ingredient_id"`
	Quantity     *string `gorm:"column:quantity" json:"quantity,omitempty"`
	Unit         *string `gorm:"column:unit" json:"unit,omitempty"`
}

func (RecipeIngredient) TableName() string {
	return "RecipeIngredient"
}

// Review is a single user rating of a recipe.
type Review struct {
	ID       int64   `gorm:"primaryKey;column:id" json:"id"`
	AuthorID int64   `gorm:"column:author_id;not null;index" json:"author_id"`
	RecipeID int64   `gorm:"column:recipe_id;not null;index" json:"recipe_id"`
	Rating   float64 `gorm:"column:rating;not null" json:"rating"`
}

func (Review) TableName() string {
	return "Review"
}
