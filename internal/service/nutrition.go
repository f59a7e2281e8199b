package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "lightly_active"
	ModeratelyActive ActivityLevel = "moderately_active"
	VeryActive       ActivityLevel = "very_active"
	ExtraActive      ActivityLevel = "extra_active"
	ExtremelyActive  ActivityLevel = "extremely_active"
)

// Multiplier returns the TDEE factor for the level.
func (a ActivityLevel) Multiplier() (float64, error) {
	switch a {
	case Sedentary:
		return 1.2, nil
	case LightlyActive:
		return 1.375, nil
	case ModeratelyActive:
		return 1.55, nil
	case VeryActive:
		return 1.725, nil
	case ExtraActive:
		return 1.85, nil
	case ExtremelyActive:
		return 1.9, nil
	default:
		return 0, invalidField("activity_level", "unknown activity level %q", string(a))
	}
}

type MealType string

const (
	MealNone      MealType = "none"
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Share returns the fraction of the daily targets a meal should cover.
func (m MealType) Share() (float64, error) {
	switch m {
	case "", MealNone:
		return 1, nil
	case MealBreakfast:
		return 0.25, nil
	case MealLunch:
		return 0.35, nil
	case MealDinner:
		return 0.30, nil
	case MealSnack:
		return 0.10, nil
	default:
		return 0, invalidField("meal_type", "unknown meal type %q", string(m))
	}
}

// UserProfile is the input of the nutrition strategy.
type UserProfile struct {
	Age           int           `json:"age" validate:"required,gt=0"`
	Gender        Gender        `json:"gender" validate:"required,oneof=male female other"`
	Weight        float64       `json:"weight" validate:"required,gt=0"`
	Height        float64       `json:"height" validate:"required,gt=0"`
	ActivityLevel ActivityLevel `json:"activity_level" validate:"required,oneof=sedentary lightly_active moderately_active very_active extra_active extremely_active"`
	MealType      MealType      `json:"meal_type,omitempty" validate:"omitempty,oneof=none breakfast lunch dinner snack"`
}

// NutritionalTargets are per-day (or per-meal) goals derived from a profile.
type NutritionalTargets struct {
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Fiber       float64 `json:"fiber"`
	SodiumLimit float64 `json:"sodium_limit"`
}

// RecipeNutrition holds the nutrient values of a recipe, zero when unknown.
type RecipeNutrition struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
	Sodium   float64
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ParseUserProfile decodes and validates a nutrition request.
func ParseUserProfile(data []byte) (UserProfile, error) {
	var profile UserProfile
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&profile); err != nil {
		return UserProfile{}, invalidField("", "invalid user data format: %v", err)
	}
	if err := ValidateUserProfile(profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// ValidateUserProfile checks required fields and enum values.
func ValidateUserProfile(profile UserProfile) error {
	err := profileValidator().Struct(profile)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := jsonFieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			return invalidField(field, "field is required")
		case "oneof":
			return invalidField(field, "unknown value %q", fmt.Sprint(fe.Value()))
		default:
			return invalidField(field, "must be %s %s", fe.Tag(), fe.Param())
		}
	}
	return invalidField("", "%v", err)
}

func jsonFieldName(structField string) string {
	switch structField {
	case "ActivityLevel":
		return "activity_level"
	case "MealType":
		return "meal_type"
	default:
		return strings.ToLower(structField)
	}
}

// CalculateBMR applies the Mifflin-St Jeor equation. Anything but male uses
// the female constant.
func CalculateBMR(p UserProfile) float64 {
	base := 10*p.Weight + 6.25*p.Height - 5*float64(p.Age)
	if p.Gender == GenderMale {
		return base + 5
	}
	return base - 161
}

// CalculateTDEE is BMR times the activity multiplier.
func CalculateTDEE(p UserProfile) (float64, error) {
	m, err := p.ActivityLevel.Multiplier()
	if err != nil {
		return 0, err
	}
	return CalculateBMR(p) * m, nil
}

// CalculateNutritionalTargets derives macro targets from TDEE. A meal type
// scales everything except the sodium limit.
func CalculateNutritionalTargets(p UserProfile) (NutritionalTargets, error) {
	calories, err := CalculateTDEE(p)
	if err != nil {
		return NutritionalTargets{}, err
	}
	share, err := p.MealType.Share()
	if err != nil {
		return NutritionalTargets{}, err
	}

	fiber := 25.0
	if p.Gender == GenderMale {
		fiber = 38
	}

	return NutritionalTargets{
		Calories:    calories * share,
		Carbs:       calories * 0.55 / 4 * share,
		Protein:     calories * 0.20 / 4 * share,
		Fat:         calories * 0.25 / 9 * share,
		Fiber:       fiber * share,
		SodiumLimit: 2300.0 / 3,
	}, nil
}

func closeness(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(value-target)/target)
}

// CalculateNutritionScore measures how well a recipe fits the targets, in [0, 1].
func CalculateNutritionScore(r RecipeNutrition, t NutritionalTargets) float64 {
	if t.Calories <= 0 {
		return 0
	}

	calorie := closeness(r.Calories, t.Calories)
	macro := (closeness(r.Protein, t.Protein) + closeness(r.Carbs, t.Carbs) + closeness(r.Fat, t.Fat)) / 3

	fiberBonus := 0.0
	if t.Fiber > 0 {
		fiberBonus = math.Min(r.Fiber/t.Fiber, 1)
	}
	sodiumPenalty := 1.0
	if t.SodiumLimit > 0 {
		sodiumPenalty = math.Max(0, 1-r.Sodium/t.SodiumLimit)
	}
	health := (fiberBonus + sodiumPenalty) / 2

	score := 0.4*calorie + 0.4*macro + 0.2*health
	return math.Max(0, math.Min(score, 1))
}

// nutritionOf reads the nutrient columns of a recipe, treating NULL as 0.
func nutritionOf(r models.Recipe) RecipeNutrition {
	return RecipeNutrition{
		Calories: valueOr(r.Calories, 0),
		Protein:  valueOr(r.ProteinContent, 0),
		Carbs:    valueOr(r.CarbohydrateContent, 0),
		Fat:      valueOr(r.FatContent, 0),
		Fiber:    valueOr(r.FiberContent, 0),
		Sodium:   valueOr(r.SodiumContent, 0),
	}
}

// NutritionService ranks recipes by how well they fit a user's nutritional targets.
type NutritionService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNutritionService creates a new NutritionService instance
func NewNutritionService(db *gorm.DB, log *zap.Logger) *NutritionService {
	return &NutritionService{db: db, log: log.Named("nutrition")}
}

// Recommend scores the 4×number best-rated recipes with known calories and
// returns the number with the highest combined score.
func (s *NutritionService) Recommend(ctx context.Context, profile UserProfile, number int) ([]Recommendation, error) {
	if err := ValidateUserProfile(profile); err != nil {
		return nil, err
	}
	targets, err := CalculateNutritionalTargets(profile)
	if err != nil {
		return nil, err
	}
	if number <= 0 {
		return []Recommendation{}, nil
	}

	var recipes []models.Recipe
	err = s.db.WithContext(ctx).
		Where("calories IS NOT NULL AND calories > 0").
		Order("aggregated_rating DESC NULLS LAST, id").
		Limit(number * 4).
		Find(&recipes).Error
	if err != nil {
		return nil, dataSourceError("load nutrition candidates", err)
	}

	results := make([]Recommendation, 0, len(recipes))
	for _, r := range recipes {
		nutrition := CalculateNutritionScore(nutritionOf(r), targets)
		combined := 0.7*nutrition + 0.3*(valueOr(r.AggregatedRating, 0)/5)

		results = append(results, Recommendation{
			ID:                  r.ID,
			Name:                r.Name,
			TotalTime:           r.Minutes(),
			ImageURL:            r.ImageURL(),
			NutrientScore:       floatPtr(round2(nutrition)),
			CombinedScore:       floatPtr(round2(combined)),
			Calories:            r.Calories,
			ProteinContent:      r.ProteinContent,
			CarbohydrateContent: r.CarbohydrateContent,
			FatContent:          r.FatContent,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].CombinedScore > *results[j].CombinedScore
	})
	if len(results) > number {
		results = results[:number]
	}

	s.log.Debug("scored nutrition candidates",
		zap.Float64("target_calories", targets.Calories),
		zap.Int("candidates", len(recipes)),
		zap.Int("returned", len(results)),
	)
	return results, nil
}
