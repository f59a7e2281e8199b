package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.uber.org/zap"
)

const reviewLogBatchSize = 10000

// ReviewLogSource reads an exported review log (CSV or Parquet) with
// AuthorId, RecipeId and Rating columns. The file is read on every request
// so a replaced export is picked up without a restart.
type ReviewLogSource struct {
	path string
	log  *zap.Logger
}

var _ CandidateSource = (*ReviewLogSource)(nil)

func NewReviewLogSource(path string, log *zap.Logger) *ReviewLogSource {
	return &ReviewLogSource{path: path, log: log}
}

func (s *ReviewLogSource) Name() string            { return "review_log" }
func (s *ReviewLogSource) Policy() CandidatePolicy { return ReviewLogPolicy }

// Available reports whether the log file exists.
func (s *ReviewLogSource) Available() bool {
	info, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("review log not readable", zap.String("path", s.path), zap.Error(err))
		}
		return false
	}
	return !info.IsDir()
}

// Ratings loads every author in the log. The requesting user is not
// excluded; the log is an external export and may not contain them.
func (s *ReviewLogSource) Ratings(ctx context.Context, _ string) (map[string]RatingSet, error) {
	var (
		users   map[string]RatingSet
		skipped int
		err     error
	)
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".parquet":
		users, skipped, err = readParquetReviewLog(ctx, s.path)
	default:
		users, skipped, err = readCSVReviewLog(ctx, s.path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, dataSourceError("read review log", err)
	}

	if skipped > 0 {
		s.log.Debug("skipped malformed review log rows", zap.String("path", s.path), zap.Int("rows", skipped))
	}
	return users, nil
}

type reviewLogColumns struct {
	author, recipe, rating int
}

func findReviewLogColumns(header []string) (reviewLogColumns, error) {
	cols := reviewLogColumns{-1, -1, -1}
	for i, name := range header {
		switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "")) {
		case "authorid":
			cols.author = i
		case "recipeid":
			cols.recipe = i
		case "rating":
			cols.rating = i
		}
	}
	if cols.author < 0 || cols.recipe < 0 || cols.rating < 0 {
		return cols, fmt.Errorf("review log header must contain AuthorId, RecipeId and Rating, got %v", header)
	}
	return cols, nil
}

func readCSVReviewLog(ctx context.Context, path string) (map[string]RatingSet, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read review log header: %w", err)
	}
	cols, err := findReviewLogColumns(header)
	if err != nil {
		return nil, 0, err
	}

	users := map[string]RatingSet{}
	skipped := 0
	for line := 0; ; line++ {
		if line%reviewLogBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read review log: %w", err)
		}
		if len(record) <= max(cols.author, cols.recipe, cols.rating) {
			skipped++
			continue
		}

		author := normalizeAuthorID(record[cols.author])
		recipeID, errID := parseRecipeID(record[cols.recipe])
		rating, errRating := strconv.ParseFloat(strings.TrimSpace(record[cols.rating]), 64)
		if author == "" || errID != nil || errRating != nil {
			skipped++
			continue
		}
		addRating(users, author, recipeID, rating)
	}
	return users, skipped, nil
}

func readParquetReviewLog(ctx context.Context, path string) (map[string]RatingSet, int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, 0, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open review log: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read review log schema: %w", err)
	}
	defer pr.ReadStop()

	users := map[string]RatingSet{}
	skipped := 0
	remaining := int(pr.GetNumRows())
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		rows, err := pr.ReadByNumber(min(reviewLogBatchSize, remaining))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read review log rows: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		remaining -= len(rows)

		for _, row := range rows {
			v := reflect.Indirect(reflect.ValueOf(row))
			author, okAuthor := parquetField(v, "AuthorId", "Author_id", "AuthorID")
			recipe, okRecipe := parquetField(v, "RecipeId", "Recipe_id", "RecipeID")
			rating, okRating := parquetField(v, "Rating")
			if !okAuthor || !okRecipe || !okRating {
				skipped++
				continue
			}
			addRating(users, normalizeAuthorID(strconv.FormatFloat(author, 'f', -1, 64)), int64(recipe), rating)
		}
	}
	return users, skipped, nil
}

// parquetField reads a numeric column from a row decoded without a schema
// struct. Optional columns decode as pointers.
func parquetField(row reflect.Value, names ...string) (float64, bool) {
	if row.Kind() != reflect.Struct {
		return 0, false
	}
	for _, name := range names {
		f := row.FieldByName(name)
		if !f.IsValid() {
			continue
		}
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				return 0, false
			}
			f = f.Elem()
		}
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(f.Int()), true
		case reflect.Float32, reflect.Float64:
			return f.Float(), true
		case reflect.String:
			v, err := strconv.ParseFloat(strings.TrimSpace(f.String()), 64)
			return v, err == nil
		default:
			return 0, false
		}
	}
	return 0, false
}

func addRating(users map[string]RatingSet, author string, recipeID int64, rating float64) {
	if users[author] == nil {
		users[author] = RatingSet{}
	}
	users[author][recipeID] = rating
}

func normalizeAuthorID(raw string) string {
	raw = strings.TrimSpace(raw)
	if id, err := parseRecipeID(raw); err == nil {
		return strconv.FormatInt(id, 10)
	}
	return raw
}

// parseRecipeID accepts "42" and exports that wrote ids as "42.0".
func parseRecipeID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("non-integer id %q", raw)
	}
	return int64(f), nil
}
