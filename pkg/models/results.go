package models

import "time"

// ModelScore is the flat view that ranking and performance metrics read.
// Both single-image results and batch aggregates expose one.
type ModelScore struct {
	ModelID          string          `json:"name"`
	Category         Category        `json:"category"`
	Accuracy         float64         `json:"accuracy"`
	Params           ParamCount      `json:"params"`
	Prediction       PredictionLabel `json:"prediction"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
}

// Scorer is implemented by every result type that can be ranked.
type Scorer interface {
	Score() ModelScore
}

// InvocationResult is one model's answer for one image.
type InvocationResult struct {
	Model            ModelDescriptor `json:"model"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	Prediction       PredictionLabel `json:"prediction"`
}

// Score implements Scorer.
func (r InvocationResult) Score() ModelScore {
	return ModelScore{
		ModelID:          r.Model.ID,
		Category:         r.Model.Category,
		Accuracy:         r.Model.Accuracy,
		Params:           r.Model.Params,
		Prediction:       r.Prediction,
		Confidence:       r.Confidence,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

// ImageEntry holds the complete panel output for one image of a batch.
type ImageEntry struct {
	Index   int                `json:"image_index"`
	Results []InvocationResult `json:"results"`
}

// ImageFailure records an image that was skipped. Index matches the
// submission position, starting at 1.
type ImageFailure struct {
	Index int    `json:"image_index"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BatchRun is the ordered record of a batch. Entries only ever contain
// fully processed images, sorted by Index.
type BatchRun struct {
	ID          string         `json:"id"`
	TotalImages int            `json:"total_images"`
	Entries     []ImageEntry   `json:"entries"`
	Failures    []ImageFailure `json:"failures,omitempty"`
	Partial     bool           `json:"partial"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Completed is the number of images with a recorded outcome, success or failure.
func (b *BatchRun) Completed() int {
	return len(b.Entries) + len(b.Failures)
}

// SingleRun is the degenerate batch of one image: a flat result list.
type SingleRun struct {
	Normalized    *NormalizedImage    `json:"-"`
	Normalization NormalizationReport `json:"normalization"`
	Results       []InvocationResult  `json:"results"`
}

// AggregatedModelStat collapses one model's results across a batch.
type AggregatedModelStat struct {
	Model            ModelDescriptor `json:"model"`
	Samples          int             `json:"samples"`
	MeanConfidence   float64         `json:"confidence"`
	MinConfidence    float64         `json:"min_confidence"`
	MaxConfidence    float64         `json:"max_confidence"`
	StdDevConfidence float64         `json:"std_dev"`
	MeanProcessingMs float64         `json:"processing_time_ms"`
	Prediction       PredictionLabel `json:"prediction"`
}

// Score implements Scorer using the mean confidence and time.
func (s AggregatedModelStat) Score() ModelScore {
	return ModelScore{
		ModelID:          s.Model.ID,
		Category:         s.Model.Category,
		Accuracy:         s.Model.Accuracy,
		Params:           s.Model.Params,
		Prediction:       s.Prediction,
		Confidence:       s.MeanConfidence,
		ProcessingTimeMs: s.MeanProcessingMs,
	}
}
