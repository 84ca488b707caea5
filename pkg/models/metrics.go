package models

import (
	"encoding/json"
	"math"
)

// ConfusionMatrix is an estimated, not measured, split of the panel's
// predictions into true/false positives and negatives.
type ConfusionMatrix struct {
	TruePositive  float64 `json:"true_positive"`
	FalsePositive float64 `json:"false_positive"`
	TrueNegative  float64 `json:"true_negative"`
	FalseNegative float64 `json:"false_negative"`
}

// Total is the sum of all four cells.
func (c ConfusionMatrix) Total() float64 {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// Percent is a value in [0,100] rounded to one decimal place. NaN means the
// value is undefined because its denominator was zero.
type Percent float64

// Undefined is the sentinel for a metric that cannot be computed.
var Undefined = Percent(math.NaN())

// Defined reports whether the value can be displayed.
func (p Percent) Defined() bool {
	return !math.IsNaN(float64(p))
}

// MarshalJSON encodes undefined values as null.
func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

// PerformanceMetrics are derived from a ConfusionMatrix.
type PerformanceMetrics struct {
	Precision   Percent `json:"precision"`
	Recall      Percent `json:"recall"`
	F1          Percent `json:"f1_score"`
	Specificity Percent `json:"specificity"`
	Accuracy    Percent `json:"accuracy"`
}

// CategoryStat summarizes all models of one category.
type CategoryStat struct {
	Category      Category `json:"category"`
	Count         int      `json:"count"`
	AvgConfidence float64  `json:"avg_confidence"`
	AvgAccuracy   float64  `json:"avg_accuracy"`
}

// AccuracyParamsPoint places a model on the accuracy vs size plane.
type AccuracyParamsPoint struct {
	ModelID    string  `json:"name"`
	Accuracy   float64 `json:"accuracy"`
	Params     float64 `json:"params"`
	Confidence float64 `json:"confidence"`
}

// PredictionDistribution counts the labels across the panel.
type PredictionDistribution struct {
	Malignant int `json:"malignant"`
	Benign    int `json:"benign"`
}

// ProcessingTime is a model's (mean) latency, whole milliseconds.
type ProcessingTime struct {
	ModelID string  `json:"name"`
	TimeMs  float64 `json:"time"`
}
