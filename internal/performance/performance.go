// Package performance estimates a confusion matrix from the panel's labels
// and derives the usual classification metrics from it.
//
// There is no ground truth. Every Malignant prediction counts as 0.85 of a
// true positive and 0.15 of a false negative, every Benign one as 0.85 of a
// true negative and 0.15 of a false positive.
package performance

import (
	"math"

	"go-xray-inspector/pkg/models"
)

// Reliability coefficients of the estimate
const (
	Correct   = 0.85
	Incorrect = 0.15
)

// ConfusionMatrix counts labels across entries. It accepts single-image
// results and batch aggregates alike.
func ConfusionMatrix[T models.Scorer](entries []T) models.ConfusionMatrix {
	malignant, benign := 0, 0
	for _, e := range entries {
		if e.Score().Prediction == models.Malignant {
			malignant++
		} else {
			benign++
		}
	}
	return models.ConfusionMatrix{
		TruePositive:  float64(malignant) * Correct,
		FalseNegative: float64(malignant) * Incorrect,
		TrueNegative:  float64(benign) * Correct,
		FalsePositive: float64(benign) * Incorrect,
	}
}

// Metrics derives percentages with one decimal. A zero denominator yields
// models.Undefined for that metric instead of an error.
func Metrics(cm models.ConfusionMatrix) models.PerformanceMetrics {
	precision := ratio(cm.TruePositive, cm.TruePositive+cm.FalsePositive)
	recall := ratio(cm.TruePositive, cm.TruePositive+cm.FalseNegative)
	f1 := ratio(2*precision*recall, precision+recall)
	specificity := ratio(cm.TrueNegative, cm.TrueNegative+cm.FalsePositive)
	accuracy := ratio(cm.TruePositive+cm.TrueNegative, cm.Total())

	return models.PerformanceMetrics{
		Precision:   Percent(precision),
		Recall:      Percent(recall),
		F1:          Percent(f1),
		Specificity: Percent(specificity),
		Accuracy:    Percent(accuracy),
	}
}

// ratio is num/den, or NaN when den is zero or either side is already NaN.
func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}

// Percent scales a ratio to a percentage rounded to one decimal place
func Percent(r float64) models.Percent {
	if math.IsNaN(r) {
		return models.Undefined
	}
	return models.Percent(math.Round(r*1000) / 10)
}
