package service

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

const (
	priorityWindowDays = 3
	priorityBonus      = 0.2
	minMatchScore      = 0.1
)

// LeftoverIngredient is an item the user has on hand.
type LeftoverIngredient struct {
	Name           string   `json:"name"`
	Quantity       *float64 `json:"quantity,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
}

type leftoverRequest struct {
	Ingredients *[]LeftoverIngredient `json:"ingredients"`
}

// ParseLeftoverRequest decodes {"ingredients": [...]}. The key is required,
// an empty list is not an error.
func ParseLeftoverRequest(data []byte) ([]LeftoverIngredient, error) {
	var req leftoverRequest
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&req); err != nil {
		return nil, invalidField("ingredients", "invalid leftover data format: %v", err)
	}
	if req.Ingredients == nil {
		return nil, invalidField("ingredients", "field is required")
	}
	for i, item := range *req.Ingredients {
		if strings.TrimSpace(item.Name) == "" {
			return nil, invalidField("ingredients", "item %d has no name", i)
		}
	}
	return *req.Ingredients, nil
}

// LeftoverService ranks recipes by how many of their ingredients the user
// already has, favoring ingredients that expire soon.
type LeftoverService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewLeftoverService creates a new LeftoverService instance
func NewLeftoverService(db *gorm.DB, log *zap.Logger) *LeftoverService {
	return &LeftoverService{
		db:  db,
		log: log.Named("leftover"),
		now: time.Now,
	}
}

// WithClock overrides the evaluation instant used for expiry checks.
func (s *LeftoverService) WithClock(now func() time.Time) *LeftoverService {
	s.now = now
	return s
}

// Recommend scores the first 3×number recipes of the catalogue against the
// leftovers and returns the best number of them.
func (s *LeftoverService) Recommend(ctx context.Context, leftovers []LeftoverIngredient, number int) ([]Recommendation, error) {
	if len(leftovers) == 0 || number <= 0 {
		return []Recommendation{}, nil
	}

	available := make([]string, 0, len(leftovers))
	for _, l := range leftovers {
		available = append(available, normalize(l.Name))
	}
	priority := PriorityIngredients(leftovers, s.now())

	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("id").Limit(number * 3).Find(&recipes).Error; err != nil {
		return nil, dataSourceError("load candidate recipes", err)
	}
	if len(recipes) == 0 {
		return []Recommendation{}, nil
	}

	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	ingredients, err := loadIngredientNames(ctx, s.db, ids)
	if err != nil {
		return nil, dataSourceError("load recipe ingredients", err)
	}

	type scored struct {
		recipe models.Recipe
		score  float64
	}
	var ranked []scored
	for _, r := range recipes {
		names := ingredients[r.ID]
		score := MatchScore(names, available) + PriorityBonus(names, priority)
		if score <= minMatchScore {
			continue
		}
		ranked = append(ranked, scored{recipe: r, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > number {
		ranked = ranked[:number]
	}

	results := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, Recommendation{
			ID:         r.recipe.ID,
			Name:       r.recipe.Name,
			TotalTime:  r.recipe.Minutes(),
			ImageURL:   r.recipe.ImageURL(),
			MatchScore: floatPtr(round2(r.score)),
		})
	}

	s.log.Debug("scored leftover candidates",
		zap.Int("candidates", len(recipes)),
		zap.Int("priority_ingredients", len(priority)),
		zap.Int("returned", len(results)),
	)
	return results, nil
}

// MatchScore is the share of recipe ingredients that contain any of the
// available names. A recipe with no ingredients scores 0.
func MatchScore(recipeIngredients, available []string) float64 {
	if len(recipeIngredients) == 0 {
		return 0
	}
	matched := 0
	for _, ing := range recipeIngredients {
		if containsAny(ing, available) {
			matched++
		}
	}
	return float64(matched) / float64(len(recipeIngredients))
}

// PriorityBonus adds 0.2 for every recipe ingredient containing a priority name.
func PriorityBonus(recipeIngredients, priority []string) float64 {
	if len(priority) == 0 {
		return 0
	}
	bonus := 0.0
	for _, ing := range recipeIngredients {
		if containsAny(ing, priority) {
			bonus += priorityBonus
		}
	}
	return bonus
}

// PriorityIngredients returns the lowercased names of leftovers expiring
// within three whole days of now. Past dates count, unparseable dates do not.
func PriorityIngredients(leftovers []LeftoverIngredient, now time.Time) []string {
	var priority []string
	for _, l := range leftovers {
		exp, ok := parseExpiration(l.ExpirationDate, now.Location())
		if !ok {
			continue
		}
		days := math.Floor(exp.Sub(now).Hours() / 24)
		if days <= priorityWindowDays {
			priority = append(priority, normalize(l.Name))
		}
	}
	return priority
}

var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseExpiration(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range expirationLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
