package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pdg-16-2025/homeal/backend/internal/models"
)

// RatingSet maps recipe ids to a user's ratings.
type RatingSet map[int64]float64

// RecipeRating is one rating supplied by the requesting user.
type RecipeRating struct {
	RecipeID int64   `json:"recipe_id"`
	Rating   float64 `json:"rating"`
}

// PreferenceRequest is the input of the preference strategy. UserID is the
// string form of whatever scalar the client sent.
type PreferenceRequest struct {
	UserID  string
	Ratings []RecipeRating
}

// SimilarUser is another user whose ratings overlap the target's.
type SimilarUser struct {
	UserID          string  `json:"user_id"`
	SimilarityScore float64 `json:"similarity_score"`
}

// ParsePreferenceRequest decodes {"user_id": scalar, "ratings": [...]}.
func ParsePreferenceRequest(data []byte) (PreferenceRequest, error) {
	var raw struct {
		UserID  json.RawMessage `json:"user_id"`
		Ratings []RecipeRating  `json:"ratings"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return PreferenceRequest{}, invalidField("", "invalid user data format: %v", err)
	}

	userID, err := scalarString(raw.UserID)
	if err != nil {
		return PreferenceRequest{}, err
	}
	return PreferenceRequest{UserID: userID, Ratings: raw.Ratings}, nil
}

func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", invalidField("user_id", "missing user_id in request data")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", invalidField("user_id", "%v", err)
		}
		return s, nil
	case '{', '[':
		return "", invalidField("user_id", "must be a scalar")
	default:
		// 42 and 42.0 name the same author.
		if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return string(trimmed), nil
	}
}

// UserSimilarity blends recipe overlap (Jaccard) with agreement on the
// shared recipes, scaled by a confidence that saturates at three shared recipes.
func UserSimilarity(a, b RatingSet) float64 {
	common := 0
	var sumA, sumB float64
	for id, ra := range a {
		if rb, ok := b[id]; ok {
			common++
			sumA += ra
			sumB += rb
		}
	}
	if common == 0 {
		return 0
	}

	union := len(a) + len(b) - common
	jaccard := float64(common) / float64(union)
	agreement := math.Max(0, 1-math.Abs(sumA/float64(common)-sumB/float64(common))/5)
	confidence := math.Min(float64(common)/3, 1)

	return confidence * (0.7*jaccard + 0.3*agreement)
}

func commonCount(a, b RatingSet) int {
	n := 0
	for id := range a {
		if _, ok := b[id]; ok {
			n++
		}
	}
	return n
}

// FindSimilarUsers keeps users sharing enough recipes with the target whose
// similarity clears the policy threshold, best first, at most TopK.
func FindSimilarUsers(target RatingSet, others map[string]RatingSet, policy CandidatePolicy) []SimilarUser {
	var similar []SimilarUser
	for userID, ratings := range others {
		if commonCount(target, ratings) < policy.MinCommonRecipes {
			continue
		}
		score := UserSimilarity(target, ratings)
		if score > policy.MinSimilarity {
			similar = append(similar, SimilarUser{UserID: userID, SimilarityScore: score})
		}
	}

	sort.Slice(similar, func(i, j int) bool {
		if similar[i].SimilarityScore != similar[j].SimilarityScore {
			return similar[i].SimilarityScore > similar[j].SimilarityScore
		}
		return similar[i].UserID < similar[j].UserID
	})
	if len(similar) > policy.TopK {
		similar = similar[:policy.TopK]
	}
	return similar
}

// CollectCandidates accumulates a weighted score for every recipe the
// similar users rated at or above the policy bar and the target has not rated.
func CollectCandidates(similar []SimilarUser, others map[string]RatingSet, target RatingSet, policy CandidatePolicy) map[int64]float64 {
	total := 0.0
	for _, u := range similar {
		total += u.SimilarityScore
	}

	candidates := map[int64]float64{}
	for _, u := range similar {
		weight := u.SimilarityScore
		if policy.NormalizeWeights {
			if total == 0 {
				continue
			}
			weight = u.SimilarityScore / total
		}
		for recipeID, rating := range others[u.UserID] {
			if _, rated := target[recipeID]; rated || rating < policy.MinRating {
				continue
			}
			candidates[recipeID] += rating * weight
		}
	}
	return candidates
}

type scoredID struct {
	id    int64
	score float64
}

func rankCandidates(candidates map[int64]float64) []scoredID {
	ranked := make([]scoredID, 0, len(candidates))
	for id, score := range candidates {
		ranked = append(ranked, scoredID{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked
}

// PreferenceService recommends recipes liked by users with similar taste.
type PreferenceService struct {
	db        *gorm.DB
	log       *zap.Logger
	unified   CandidateSource
	reviewLog CandidateSource
}

// NewPreferenceService creates a new PreferenceService. reviewLogPath may be
// empty; when set, the file is preferred over the Review table whenever it exists.
func NewPreferenceService(db *gorm.DB, log *zap.Logger, reviewLogPath string) *PreferenceService {
	log = log.Named("preference")
	s := &PreferenceService{
		db:      db,
		log:     log,
		unified: NewUnifiedStoreSource(db),
	}
	if reviewLogPath != "" {
		s.reviewLog = NewReviewLogSource(reviewLogPath, log)
	}
	return s
}

// source picks the review log when it is configured and present.
func (s *PreferenceService) source() CandidateSource {
	if s.reviewLog != nil && s.reviewLog.Available() {
		return s.reviewLog
	}
	return s.unified
}

// Recommend ranks recipes for the requesting user. No ratings, no similar
// users or no candidates all yield an empty list. A missing user_id is
// rejected by ParsePreferenceRequest; an empty one is a valid id.
func (s *PreferenceService) Recommend(ctx context.Context, req PreferenceRequest, number int) ([]Recommendation, error) {
	if len(req.Ratings) == 0 || number <= 0 {
		return []Recommendation{}, nil
	}

	target := make(RatingSet, len(req.Ratings))
	for _, r := range req.Ratings {
		target[r.RecipeID] = r.Rating
	}

	source := s.source()
	others, err := source.Ratings(ctx, req.UserID)
	if err != nil && errors.Is(err, os.ErrNotExist) && source != s.unified {
		s.log.Debug("review log disappeared, falling back to unified store", zap.Error(err))
		source = s.unified
		others, err = source.Ratings(ctx, req.UserID)
	}
	if err != nil {
		return nil, err
	}

	policy := source.Policy()
	similar := FindSimilarUsers(target, others, policy)
	if len(similar) == 0 {
		s.log.Debug("no similar users", zap.String("source", source.Name()), zap.Int("users", len(others)))
		return []Recommendation{}, nil
	}

	candidates := CollectCandidates(similar, others, target, policy)
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}

	ranked := rankCandidates(candidates)
	if policy.VerifyWindow > 0 && number <= (len(ranked)-1)/policy.VerifyWindow {
		ranked = ranked[:policy.VerifyWindow*number]
	}

	results, err := s.hydrate(ctx, ranked, number, policy, len(similar))
	if err != nil {
		return nil, err
	}

	s.log.Debug("scored preference candidates",
		zap.String("source", source.Name()),
		zap.Int("similar_users", len(similar)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(results)),
	)
	return results, nil
}

// hydrate walks the ranked ids in batches, keeps the ones present in the
// catalogue and stops once number recipes were found.
func (s *PreferenceService) hydrate(ctx context.Context, ranked []scoredID, number int, policy CandidatePolicy, similarCount int) ([]Recommendation, error) {
	batch := len(ranked)
	if number < batch/2 {
		batch = max(2*number, 1)
	}
	results := make([]Recommendation, 0, min(number, len(ranked)))

	for start := 0; start < len(ranked) && len(results) < number; start += batch {
		end := min(start+batch, len(ranked))
		ids := make([]int64, 0, end-start)
		for _, c := range ranked[start:end] {
			ids = append(ids, c.id)
		}

		recipes, err := loadRecipes(ctx, s.db, ids)
		if err != nil {
			return nil, dataSourceError("load preference candidates", err)
		}

		for _, c := range ranked[start:end] {
			r, ok := recipes[c.id]
			if !ok {
				continue
			}
			rec := Recommendation{
				ID:              r.ID,
				Name:            r.Name,
				TotalTime:       r.Minutes(),
				ImageURL:        r.ImageURL(),
				PreferenceScore: floatPtr(round2(c.score)),
				AvgRating:       floatPtr(valueOr(r.AggregatedRating, 0)),
				ReviewCount:     int64Ptr(int64ValueOr(r.ReviewCount, 0)),
			}
			if policy.ReportSimilarUsers {
				n := similarCount
				rec.SimilarUsersCount = &n
			}
			results = append(results, rec)
			if len(results) == number {
				break
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].PreferenceScore > *results[j].PreferenceScore
	})
	return results, nil
}

// CandidatePolicy holds the thresholds a rating source is used with.
type CandidatePolicy struct {
	MinCommonRecipes int
	MinSimilarity    float64
	TopK             int
	MinRating        float64
	// NormalizeWeights divides each similarity by the sum over kept users.
	NormalizeWeights bool
	// VerifyWindow limits catalogue lookups to the best VerifyWindow×number
	// candidates; 0 scans until enough recipes are found.
	VerifyWindow       int
	ReportSimilarUsers bool
}

var (
	// UnifiedStorePolicy applies to the Review table.
	UnifiedStorePolicy = CandidatePolicy{
		MinCommonRecipes: 2,
		MinSimilarity:    0.1,
		TopK:             10,
		MinRating:        3.0,
		NormalizeWeights: true,
		VerifyWindow:     2,
	}
	// ReviewLogPolicy applies to the exported review log, which only holds
	// five-star reviews.
	ReviewLogPolicy = CandidatePolicy{
		MinCommonRecipes:   1,
		MinSimilarity:      0.05,
		TopK:               20,
		MinRating:          5.0,
		NormalizeWeights:   false,
		ReportSimilarUsers: true,
	}
)

// CandidateSource supplies the rating history similar users are drawn from.
type CandidateSource interface {
	Name() string
	Available() bool
	Policy() CandidatePolicy
	// Ratings returns every known user's ratings keyed by user id.
	Ratings(ctx context.Context, targetUserID string) (map[string]RatingSet, error)
}

// UnifiedStoreSource reads the Review table.
type UnifiedStoreSource struct {
	db *gorm.DB
}

var _ CandidateSource = (*UnifiedStoreSource)(nil)

func NewUnifiedStoreSource(db *gorm.DB) *UnifiedStoreSource {
	return &UnifiedStoreSource{db: db}
}

func (s *UnifiedStoreSource) Name() string            { return "unified_store" }
func (s *UnifiedStoreSource) Available() bool         { return true }
func (s *UnifiedStoreSource) Policy() CandidatePolicy { return UnifiedStorePolicy }

// Ratings excludes the requesting user's own reviews.
func (s *UnifiedStoreSource) Ratings(ctx context.Context, targetUserID string) (map[string]RatingSet, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Select("author_id", "recipe_id", "rating").
		Find(&reviews).Error
	if err != nil {
		return nil, dataSourceError("load reviews", err)
	}

	users := map[string]RatingSet{}
	for _, r := range reviews {
		author := strconv.FormatInt(r.AuthorID, 10)
		if author == targetUserID {
			continue
		}
		if users[author] == nil {
			users[author] = RatingSet{}
		}
		users[author][r.RecipeID] = r.Rating
	}
	return users, nil
}
