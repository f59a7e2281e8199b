package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/metrics"
	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// Regime is a dietary regime matched against recipe keywords.
type Regime string

const (
	RegimeNone        Regime = "none"
	RegimeVegan       Regime = "vegan"
	RegimeVegetarian  Regime = "vegetarian"
	RegimePescatarian Regime = "pescatarian"
	RegimeKeto        Regime = "keto"
	RegimeGlutenFree  Regime = "gluten_free"
	RegimeDairyFree   Regime = "dairy_free"
	RegimePaleo       Regime = "paleo"
	RegimeLowFat      Regime = "low_fat"
	RegimeLowSodium   Regime = "low_sodium"
)

var regimeKeywords = map[Regime][]string{
	RegimeVegan:       {"vegan"},
	RegimeVegetarian:  {"vegetarian", "vegan"},
	RegimePescatarian: {"pescatarian", "fish", "seafood"},
	RegimeKeto:        {"keto", "ketogenic", "low carb", "very low carbs"},
	RegimeGlutenFree:  {"gluten free", "gluten-free", "wheat free", "wheat-free"},
	RegimeDairyFree:   {"dairy free", "dairy-free"},
	RegimePaleo:       {"paleo"},
	RegimeLowFat:      {"low fat", "low-fat"},
	RegimeLowSodium:   {"low sodium", "low-sodium"},
}

// Recipes whose keywords mention none of these are also accepted by the
// vegetarian and gluten_free regimes.
var (
	meatKeywords   = []string{"chicken", "beef", "pork", "lamb", "turkey", "meat", "bacon", "sausage"}
	glutenKeywords = []string{"flour", "wheat", "bread", "pasta", "noodle", "biscuit", "cake", "cookie"}
)

var allergenIngredients = map[string][]string{
	"nuts":      {"almond", "walnut", "pecan", "cashew", "pistachio", "hazelnut", "peanut"},
	"dairy":     {"milk", "cheese", "butter", "cream", "yogurt", "sour cream"},
	"eggs":      {"egg", "eggs"},
	"gluten":    {"wheat", "flour", "bread", "pasta"},
	"shellfish": {"shrimp", "crab", "lobster", "clam", "oyster"},
	"soy":       {"soy", "tofu", "soy sauce"},
	"fish":      {"salmon", "tuna", "cod", "fish"},
}

// ParseRegime normalizes a regime name. ok is false for empty, "none" and
// unrecognised names, all of which mean "no regime constraint".
func ParseRegime(name string) (Regime, bool) {
	r := Regime(normalize(name))
	if _, known := regimeKeywords[r]; !known {
		return RegimeNone, false
	}
	return r, true
}

// MatchesRegime reports whether recipe keywords satisfy the regime.
func MatchesRegime(keywords, regime string) bool {
	r, ok := ParseRegime(regime)
	if !ok {
		return true
	}

	kw := strings.ToLower(keywords)
	if containsAny(kw, regimeKeywords[r]) {
		return true
	}
	switch r {
	case RegimeVegetarian:
		return !containsAny(kw, meatKeywords)
	case RegimeGlutenFree:
		return !containsAny(kw, glutenKeywords)
	default:
		return false
	}
}

// DietaryFilter holds the constraints a request places on every result.
type DietaryFilter struct {
	Regime                 string   `json:"dietary_regime"`
	BlacklistedIngredients []string `json:"blacklisted_ingredients"`
	Allergies              []string `json:"allergies"`
	MaxCalories            *float64 `json:"max_calories"`
	MinRating              *float64 `json:"min_rating"`
}

// ParseDietaryFilter reads the filter keys of a request body. Absent keys
// mean no constraint.
func ParseDietaryFilter(data []byte) (DietaryFilter, error) {
	var f DietaryFilter
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return DietaryFilter{}, invalidField("", "invalid dietary filter: %v", err)
	}
	if f.BlacklistedIngredients == nil {
		f.BlacklistedIngredients = []string{}
	}
	if f.Allergies == nil {
		f.Allergies = []string{}
	}
	return f, nil
}

// ceiling returns the calorie limit. Zero counts as unset.
func (f DietaryFilter) ceiling() (float64, bool) {
	if f.MaxCalories == nil || *f.MaxCalories == 0 {
		return 0, false
	}
	return *f.MaxCalories, true
}

// floor returns the minimum rating. Zero counts as unset.
func (f DietaryFilter) floor() (float64, bool) {
	if f.MinRating == nil || *f.MinRating == 0 {
		return 0, false
	}
	return *f.MinRating, true
}

func (f DietaryFilter) hasExclusions() bool {
	return len(f.BlacklistedIngredients) > 0 || len(f.Allergies) > 0
}

// Excludes reports whether any ingredient contains a blacklisted name or an
// ingredient of a listed allergen. Unknown allergens are ignored.
func (f DietaryFilter) Excludes(ingredients []string) bool {
	blacklist := make([]string, 0, len(f.BlacklistedIngredients))
	for _, item := range f.BlacklistedIngredients {
		blacklist = append(blacklist, normalize(item))
	}
	for _, ing := range ingredients {
		if containsAny(ing, blacklist) {
			return true
		}
	}
	for _, allergen := range f.Allergies {
		terms, ok := allergenIngredients[strings.ToLower(allergen)]
		if !ok {
			continue
		}
		for _, ing := range ingredients {
			if containsAny(ing, terms) {
				return true
			}
		}
	}
	return false
}

// withoutCeiling and essential return relaxed copies.
func (f DietaryFilter) withoutCeiling() DietaryFilter {
	f.MaxCalories = nil
	return f
}

func (f DietaryFilter) essential() DietaryFilter {
	f.MaxCalories = nil
	f.MinRating = nil
	return f
}

// RecipeFilter applies dietary filters to candidate lists and fetches
// replacement recipes from the catalogue.
type RecipeFilter struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecipeFilter creates a new RecipeFilter instance
func NewRecipeFilter(db *gorm.DB, log *zap.Logger) *RecipeFilter {
	return &RecipeFilter{db: db, log: log.Named("filter")}
}

// FilterRecipes keeps the recipes that pass every constraint, preserving
// order. Calorie and rating bounds only apply when the recipe has a value.
func (r *RecipeFilter) FilterRecipes(ctx context.Context, recipes []models.Recipe, f DietaryFilter) ([]models.Recipe, error) {
	var ingredients map[int64][]string
	if f.hasExclusions() && len(recipes) > 0 {
		ids := make([]int64, len(recipes))
		for i, rec := range recipes {
			ids[i] = rec.ID
		}
		var err error
		if ingredients, err = loadIngredientNames(ctx, r.db, ids); err != nil {
			return nil, dataSourceError("load recipe ingredients", err)
		}
	}

	maxCalories, hasCeiling := f.ceiling()
	minRating, hasFloor := f.floor()

	kept := make([]models.Recipe, 0, len(recipes))
	for _, rec := range recipes {
		if !MatchesRegime(rec.KeywordText(), f.Regime) {
			continue
		}
		if ingredients != nil && f.Excludes(ingredients[rec.ID]) {
			continue
		}
		if hasCeiling && rec.Calories != nil && *rec.Calories != 0 && *rec.Calories > maxCalories {
			continue
		}
		if hasFloor && rec.AggregatedRating != nil && *rec.AggregatedRating != 0 && *rec.AggregatedRating < minRating {
			continue
		}
		kept = append(kept, rec)
	}
	return kept, nil
}

// Query returns up to limit random recipes satisfying the filter. Bounds
// and the regime keyword test run in SQL over 3×limit rows; the ingredient
// exclusions are checked afterwards.
func (r *RecipeFilter) Query(ctx context.Context, f DietaryFilter, limit int) ([]models.Recipe, error) {
	if limit <= 0 {
		return []models.Recipe{}, nil
	}

	q := r.db.WithContext(ctx).Model(&models.Recipe{})
	if v, ok := f.ceiling(); ok {
		q = q.Where("(calories IS NULL OR calories <= ?)", v)
	}
	if v, ok := f.floor(); ok {
		q = q.Where("(aggregated_rating IS NULL OR aggregated_rating >= ?)", v)
	}
	if regime, ok := ParseRegime(f.Regime); ok {
		terms := regimeKeywords[regime]
		conds := make([]string, len(terms))
		args := make([]interface{}, len(terms))
		for i, term := range terms {
			conds[i] = "LOWER(keywords) LIKE ?"
			args[i] = "%" + term + "%"
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var recipes []models.Recipe
	if err := q.Order("RANDOM()").Limit(limit * 3).Find(&recipes).Error; err != nil {
		return nil, dataSourceError("query filtered recipes", err)
	}

	if !f.hasExclusions() {
		if len(recipes) > limit {
			recipes = recipes[:limit]
		}
		return recipes, nil
	}

	ids := make([]int64, len(recipes))
	for i, rec := range recipes {
		ids[i] = rec.ID
	}
	ingredients, err := loadIngredientNames(ctx, r.db, ids)
	if err != nil {
		return nil, dataSourceError("load recipe ingredients", err)
	}

	kept := make([]models.Recipe, 0, min(limit, len(recipes)))
	for _, rec := range recipes {
		if f.Excludes(ingredients[rec.ID]) {
			continue
		}
		kept = append(kept, rec)
		if len(kept) >= limit {
			break
		}
	}
	return kept, nil
}

// EnsureMinimum tops recipes up to minimum by relaxing the calorie limit,
// then the rating floor, then querying with only the regime and
// exclusions. Recipes already in the list are never removed and every
// query still enforces the regime and exclusions.
func (r *RecipeFilter) EnsureMinimum(ctx context.Context, recipes []Recommendation, f DietaryFilter, minimum int) ([]Recommendation, error) {
	if len(recipes) >= minimum {
		return recipes, nil
	}

	combined := recipes
	if _, ok := f.ceiling(); ok {
		var err error
		if combined, err = r.relax(ctx, "calories", combined, f.withoutCeiling(), minimum*2); err != nil {
			return nil, err
		}
		if len(combined) >= minimum {
			return truncate(combined, minimum*2), nil
		}
	}

	if _, ok := f.floor(); ok {
		var err error
		if combined, err = r.relax(ctx, "rating", combined, f.essential(), minimum*2); err != nil {
			return nil, err
		}
		if len(combined) >= minimum {
			return truncate(combined, minimum*2), nil
		}
	}

	return r.relax(ctx, "essential", combined, f.essential(), minimum*3)
}

func (r *RecipeFilter) relax(ctx context.Context, step string, have []Recommendation, f DietaryFilter, limit int) ([]Recommendation, error) {
	metrics.RecordRelaxationStep(step)

	extra, err := r.Query(ctx, f, limit)
	if err != nil {
		return nil, err
	}
	merged := mergeDistinct(have, extra)
	r.log.Debug("relaxed dietary constraints",
		zap.String("step", step),
		zap.Int("before", len(have)),
		zap.Int("after", len(merged)),
	)
	return merged, nil
}

// mergeDistinct appends the recipes whose ids are not already present.
func mergeDistinct(have []Recommendation, extra []models.Recipe) []Recommendation {
	seen := make(map[int64]struct{}, len(have))
	for _, rec := range have {
		seen[rec.ID] = struct{}{}
	}
	merged := append(make([]Recommendation, 0, len(have)+len(extra)), have...)
	for _, rec := range extra {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, summarize(rec))
	}
	return merged
}

func truncate(recs []Recommendation, n int) []Recommendation {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// containsAny reports whether s contains any of terms as a substring.
func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(s, term) {
			return true
		}
	}
	return false
}
