package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/metrics"
	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// Strategy selects the scorer used for a request.
type Strategy string

const (
	StrategyIngredients Strategy = "ingredients"
	StrategyNutriments  Strategy = "nutriments"
	StrategyPreferences Strategy = "preferences"
	StrategyRandom      Strategy = "random"
)

// ValidStrategies lists the accepted strategy names in display order.
var ValidStrategies = []string{
	string(StrategyIngredients),
	string(StrategyNutriments),
	string(StrategyPreferences),
	string(StrategyRandom),
}

const (
	DefaultNumber = 5
	// MaxNumber bounds the recipes served per request.
	MaxNumber = 100
)

// ErrorKind classifies a failed envelope for transport status mapping.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindUnknownStrategy
	KindInternal
)

// FiltersApplied echoes the dietary constraints of a request.
type FiltersApplied struct {
	DietaryRegime          *string  `json:"dietary_regime"`
	BlacklistedIngredients []string `json:"blacklisted_ingredients"`
	Allergies              []string `json:"allergies"`
	MaxCalories            *float64 `json:"max_calories"`
}

// Envelope is the response of every recommendation request. A non-empty
// Error selects the error shape when serialized.
type Envelope struct {
	Type            string
	Recommendations []Recommendation
	Message         string
	FiltersApplied  FiltersApplied

	Error      string
	ValidTypes []string
	Kind       ErrorKind
}

func (e Envelope) Failed() bool {
	return e.Error != ""
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Failed() {
		return json.Marshal(struct {
			Error      string   `json:"error"`
			Type       string   `json:"type"`
			ValidTypes []string `json:"valid_types,omitempty"`
		}{e.Error, e.Type, e.ValidTypes})
	}

	recs := e.Recommendations
	if recs == nil {
		recs = []Recommendation{}
	}
	return json.Marshal(struct {
		Type            string           `json:"type"`
		Recommendations []Recommendation `json:"recommendations"`
		Message         string           `json:"message"`
		FiltersApplied  FiltersApplied   `json:"filters_applied"`
	}{e.Type, recs, e.Message, e.FiltersApplied})
}

var strategyMessages = map[Strategy]string{
	StrategyIngredients: "Recipes optimized for your leftover ingredients",
	StrategyNutriments:  "Recipes tailored to your nutritional needs",
	StrategyPreferences: "Recipes recommended based on similar users' preferences",
	StrategyRandom:      "Random recipe recommendations",
}

// Options configures a RecommendationService.
type Options struct {
	// ReviewLogPath points at an exported review log used by the
	// preference strategy when the file exists.
	ReviewLogPath string
	DefaultNumber int
	// MaxNumber caps the requested number; larger requests are clamped.
	MaxNumber int
}

// RecommendationService routes requests to a scorer, applies the dietary
// filter and tops the result up when filtering left too few recipes.
type RecommendationService struct {
	db            *gorm.DB
	log           *zap.Logger
	filter        *RecipeFilter
	leftover      *LeftoverService
	nutrition     *NutritionService
	preference    *PreferenceService
	defaultNumber int
	maxNumber     int
}

// NewRecommendationService creates a new RecommendationService instance
func NewRecommendationService(db *gorm.DB, log *zap.Logger, opts Options) *RecommendationService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultNumber <= 0 {
		opts.DefaultNumber = DefaultNumber
	}
	if opts.MaxNumber <= 0 {
		opts.MaxNumber = MaxNumber
	}
	opts.DefaultNumber = min(opts.DefaultNumber, opts.MaxNumber)
	return &RecommendationService{
		db:            db,
		log:           log.Named("recommendation"),
		filter:        NewRecipeFilter(db, log),
		leftover:      NewLeftoverService(db, log),
		nutrition:     NewNutritionService(db, log),
		preference:    NewPreferenceService(db, log, opts.ReviewLogPath),
		defaultNumber: opts.DefaultNumber,
		maxNumber:     opts.MaxNumber,
	}
}

// Leftover exposes the leftover scorer, mainly to pin its clock in tests.
func (s *RecommendationService) Leftover() *LeftoverService {
	return s.leftover
}

// Recommend serves one request. It never returns an error or panics;
// failures are reported in the envelope.
func (s *RecommendationService) Recommend(ctx context.Context, strategy string, data []byte, number int) (env Envelope) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("recommendation panicked", zap.String("type", strategy), zap.Any("panic", p))
			env = errorEnvelope(strategy, KindInternal, fmt.Sprintf("Internal error: %v", p))
		}
		metrics.RecordRecommendation(metricLabel(strategy), outcomeOf(env), time.Since(start))
	}()

	if number <= 0 {
		number = s.defaultNumber
	}
	if number > s.maxNumber {
		s.log.Debug("clamping requested number", zap.Int("requested", number), zap.Int("max", s.maxNumber))
		number = s.maxNumber
	}

	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errorEnvelope(strategy, KindInvalidInput, "Invalid JSON data: "+err.Error())
	}
	if _, ok := probe.(map[string]interface{}); !ok {
		return errorEnvelope(strategy, KindInvalidInput, "Invalid input data: request data must be a JSON object")
	}

	filter, err := ParseDietaryFilter(data)
	if err != nil {
		return s.failure(strategy, err)
	}

	message, known := strategyMessages[Strategy(strategy)]
	if !known {
		env = errorEnvelope(strategy, KindUnknownStrategy, "Unknown recommendation type: "+strategy)
		env.ValidTypes = ValidStrategies
		return env
	}

	scored, err := s.score(ctx, Strategy(strategy), data, number*3)
	if err != nil {
		return s.failure(strategy, err)
	}

	recs, err := s.finalize(ctx, scored, filter, number)
	if err != nil {
		return s.failure(strategy, err)
	}

	s.log.Debug("served recommendations",
		zap.String("type", strategy),
		zap.Int("scored", len(scored)),
		zap.Int("returned", len(recs)),
	)

	return Envelope{
		Type:            strategy,
		Recommendations: recs,
		Message:         message + filterSummary(filter),
		FiltersApplied:  filtersApplied(filter),
	}
}

func (s *RecommendationService) score(ctx context.Context, strategy Strategy, data []byte, n int) ([]Recommendation, error) {
	switch strategy {
	case StrategyIngredients:
		leftovers, err := ParseLeftoverRequest(data)
		if err != nil {
			return nil, err
		}
		return s.leftover.Recommend(ctx, leftovers, n)
	case StrategyNutriments:
		profile, err := ParseUserProfile(data)
		if err != nil {
			return nil, err
		}
		return s.nutrition.Recommend(ctx, profile, n)
	case StrategyPreferences:
		req, err := ParsePreferenceRequest(data)
		if err != nil {
			return nil, err
		}
		return s.preference.Recommend(ctx, req, n)
	case StrategyRandom:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
}

// finalize filters scored recipes, pads them from the catalogue and
// guarantees min(number, 3) results where the catalogue allows.
func (s *RecommendationService) finalize(ctx context.Context, scored []Recommendation, f DietaryFilter, number int) ([]Recommendation, error) {
	minimum := min(number, 3)

	if len(scored) == 0 {
		base, err := s.filter.Query(ctx, f, number)
		if err != nil {
			return nil, err
		}
		recs, err := s.filter.EnsureMinimum(ctx, mergeDistinct(nil, base), f, minimum)
		if err != nil {
			return nil, err
		}
		return truncate(recs, number), nil
	}

	kept, err := s.filterScored(ctx, scored, f)
	if err != nil {
		return nil, err
	}

	if len(kept) < number {
		extra, err := s.filter.Query(ctx, f, number*2)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]struct{}, len(kept))
		for _, r := range kept {
			seen[r.ID] = struct{}{}
		}
		for _, r := range extra {
			if len(kept) >= number {
				break
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			kept = append(kept, summarize(r))
		}
	}

	recs, err := s.filter.EnsureMinimum(ctx, kept, f, minimum)
	if err != nil {
		return nil, err
	}
	return truncate(recs, number), nil
}

// filterScored reloads scored recipes from the catalogue so the filter sees
// their keywords, calories and rating, then keeps the scorer's output for
// the survivors. Ids missing from the catalogue are dropped.
func (s *RecommendationService) filterScored(ctx context.Context, scored []Recommendation, f DietaryFilter) ([]Recommendation, error) {
	ids := make([]int64, len(scored))
	byID := make(map[int64]Recommendation, len(scored))
	for i, r := range scored {
		ids[i] = r.ID
		byID[r.ID] = r
	}

	rows, err := loadRecipes(ctx, s.db, ids)
	if err != nil {
		return nil, dataSourceError("load scored recipes", err)
	}

	recipes := make([]models.Recipe, 0, len(scored))
	for _, id := range ids {
		if r, ok := rows[id]; ok {
			recipes = append(recipes, r)
		}
	}

	passed, err := s.filter.FilterRecipes(ctx, recipes, f)
	if err != nil {
		return nil, err
	}

	kept := make([]Recommendation, 0, len(passed))
	for _, r := range passed {
		kept = append(kept, byID[r.ID])
	}
	return kept, nil
}

func (s *RecommendationService) failure(strategy string, err error) Envelope {
	if errors.Is(err, ErrInvalidInput) {
		return errorEnvelope(strategy, KindInvalidInput, "Invalid input data: "+err.Error())
	}
	s.log.Error("recommendation failed", zap.String("type", strategy), zap.Error(err))
	return errorEnvelope(strategy, KindInternal, "Internal error: "+err.Error())
}

func errorEnvelope(strategy string, kind ErrorKind, msg string) Envelope {
	return Envelope{Type: strategy, Error: msg, Kind: kind}
}

func filterSummary(f DietaryFilter) string {
	var parts []string
	if f.Regime != "" {
		parts = append(parts, f.Regime)
	}
	if len(f.BlacklistedIngredients) > 0 {
		parts = append(parts, "avoiding "+strings.Join(f.BlacklistedIngredients, ", "))
	}
	if len(f.Allergies) > 0 {
		parts = append(parts, "allergen-free ("+strings.Join(f.Allergies, ", ")+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return " | Filtered for: " + strings.Join(parts, ", ")
}

func filtersApplied(f DietaryFilter) FiltersApplied {
	applied := FiltersApplied{
		BlacklistedIngredients: f.BlacklistedIngredients,
		Allergies:              f.Allergies,
		MaxCalories:            f.MaxCalories,
	}
	if f.Regime != "" {
		regime := f.Regime
		applied.DietaryRegime = &regime
	}
	if applied.BlacklistedIngredients == nil {
		applied.BlacklistedIngredients = []string{}
	}
	if applied.Allergies == nil {
		applied.Allergies = []string{}
	}
	return applied
}

// metricLabel bounds the label set to known strategies.
func metricLabel(strategy string) string {
	if _, ok := strategyMessages[Strategy(strategy)]; ok {
		return strategy
	}
	return "unknown"
}

func outcomeOf(env Envelope) string {
	switch env.Kind {
	case KindNone:
		return metrics.OutcomeSuccess
	case KindInvalidInput, KindUnknownStrategy:
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeInternal
	}
}
