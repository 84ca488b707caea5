// Package ranking provides read-only views over panel results. Every
// function accepts single-image results or batch aggregates and is total:
// empty input gives an empty result.
package ranking

import (
	"math"
	"sort"
	"strings"

	"go-xray-inspector/pkg/models"
)

const (
	// DefaultTopN is used when TopN gets a non-positive n
	DefaultTopN = 5
	// DefaultFastest is used when FastestModels gets a non-positive n
	DefaultFastest = 10
	// AllCategories selects every entry in FilterByCategory
	AllCategories = "all"
)

// BestModel returns the entry with the highest confidence. Ties go to the
// earliest entry. ok is false for empty input.
func BestModel[T models.Scorer](entries []T) (best T, ok bool) {
	for i, e := range entries {
		if i == 0 || e.Score().Confidence > best.Score().Confidence {
			best = e
		}
	}
	return best, len(entries) > 0
}

// TopN returns up to n entries by descending confidence, keeping input
// order among equal confidences. The input is not reordered.
func TopN[T models.Scorer](entries []T, n int) []T {
	if n <= 0 {
		n = DefaultTopN
	}
	sorted := make([]T, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score().Confidence > sorted[j].Score().Confidence
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// CategoryStats groups entries by category in first-seen order. Averages
// are percentages with one decimal.
func CategoryStats[T models.Scorer](entries []T) []models.CategoryStat {
	type acc struct {
		conf, accuracy float64
		count          int
	}
	var order []models.Category
	sums := make(map[models.Category]*acc)

	for _, e := range entries {
		s := e.Score()
		a, ok := sums[s.Category]
		if !ok {
			a = &acc{}
			sums[s.Category] = a
			order = append(order, s.Category)
		}
		a.conf += s.Confidence
		a.accuracy += s.Accuracy
		a.count++
	}

	out := make([]models.CategoryStat, 0, len(order))
	for _, c := range order {
		a := sums[c]
		out = append(out, models.CategoryStat{
			Category:      c,
			Count:         a.count,
			AvgConfidence: percent(a.conf / float64(a.count)),
			AvgAccuracy:   percent(a.accuracy / float64(a.count)),
		})
	}
	return out
}

// Categories lists the distinct categories in first-seen order
func Categories[T models.Scorer](entries []T) []models.Category {
	seen := make(map[models.Category]bool)
	out := make([]models.Category, 0)
	for _, e := range entries {
		c := e.Score().Category
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// FilterByCategory keeps entries of one category. "all" or an empty
// category keeps everything.
func FilterByCategory[T models.Scorer](entries []T, category string) []T {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		out := make([]T, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]T, 0)
	for _, e := range entries {
		if strings.EqualFold(string(e.Score().Category), category) {
			out = append(out, e)
		}
	}
	return out
}

// AccuracyVsParams places each model by size and accuracy. Models without a
// parameter count are left out.
func AccuracyVsParams[T models.Scorer](entries []T) []models.AccuracyParamsPoint {
	out := make([]models.AccuracyParamsPoint, 0, len(entries))
	for _, e := range entries {
		s := e.Score()
		if !s.Params.Specified {
			continue
		}
		out = append(out, models.AccuracyParamsPoint{
			ModelID:    s.ModelID,
			Accuracy:   percent(s.Accuracy),
			Params:     s.Params.Millions,
			Confidence: percent(s.Confidence),
		})
	}
	return out
}

// PredictionDistribution counts labels
func PredictionDistribution[T models.Scorer](entries []T) models.PredictionDistribution {
	var d models.PredictionDistribution
	for _, e := range entries {
		switch e.Score().Prediction {
		case models.Malignant:
			d.Malignant++
		case models.Benign:
			d.Benign++
		}
	}
	return d
}

// FastestModels returns up to n entries by ascending processing time,
// stable for ties. Times are rounded to whole milliseconds.
func FastestModels[T models.Scorer](entries []T, n int) []models.ProcessingTime {
	if n <= 0 {
		n = DefaultFastest
	}
	scores := make([]models.ModelScore, len(entries))
	for i, e := range entries {
		scores[i] = e.Score()
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].ProcessingTimeMs < scores[j].ProcessingTimeMs
	})
	if len(scores) > n {
		scores = scores[:n]
	}

	out := make([]models.ProcessingTime, len(scores))
	for i, s := range scores {
		out[i] = models.ProcessingTime{ModelID: s.ModelID, TimeMs: math.Round(s.ProcessingTimeMs)}
	}
	return out
}

// Scores flattens entries into their ranking view
func Scores[T models.Scorer](entries []T) []models.ModelScore {
	out := make([]models.ModelScore, len(entries))
	for i, e := range entries {
		out[i] = e.Score()
	}
	return out
}

func percent(r float64) float64 {
	return math.Round(r*1000) / 10
}
