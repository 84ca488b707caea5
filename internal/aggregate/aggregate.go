// Package aggregate collapses a batch into one statistics record per model.
package aggregate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/pkg/models"
)

// ErrPartialBatch is returned for canceled runs. Their statistics would look
// final while covering only part of the submitted images.
var ErrPartialBatch = errors.New("batch run is partial")

type group struct {
	model       models.ModelDescriptor
	prediction  models.PredictionLabel
	confidences []float64
	times       []float64
	lastEntry   int
}

// Aggregate groups every result by model id, in first-seen order. Each
// model must appear exactly once per processed image; otherwise the run is
// rejected with an inconsistent panel error.
func Aggregate(run *models.BatchRun) ([]models.AggregatedModelStat, error) {
	if run == nil {
		return nil, nil
	}
	if run.Partial {
		return nil, ErrPartialBatch
	}

	images := len(run.Entries)
	var order []string
	groups := make(map[string]*group)

	for i, entry := range run.Entries {
		for _, r := range entry.Results {
			g, ok := groups[r.Model.ID]
			if !ok {
				g = &group{
					model:       r.Model,
					prediction:  r.Prediction,
					confidences: make([]float64, 0, images),
					times:       make([]float64, 0, images),
					lastEntry:   -1,
				}
				groups[r.Model.ID] = g
				order = append(order, r.Model.ID)
			}
			if g.lastEntry == i {
				return nil, apperrors.NewInconsistentPanelError(
					fmt.Sprintf("model %s appears twice for image %d", r.Model.ID, entry.Index), nil)
			}
			g.lastEntry = i
			g.confidences = append(g.confidences, r.Confidence)
			g.times = append(g.times, r.ProcessingTimeMs)
		}
	}

	stats := make([]models.AggregatedModelStat, 0, len(order))
	for _, id := range order {
		g := groups[id]
		if len(g.confidences) != images {
			return nil, apperrors.NewInconsistentPanelError(
				fmt.Sprintf("model %s has %d samples across %d images", id, len(g.confidences), images), nil)
		}
		stats = append(stats, summarize(g))
	}
	return stats, nil
}

func summarize(g *group) models.AggregatedModelStat {
	lo, hi := floats.Min(g.confidences), floats.Max(g.confidences)
	mean, std := stat.PopMeanStdDev(g.confidences, nil)
	// Rounding must not push the mean outside [min, max] or leave a
	// residual spread for identical samples.
	switch {
	case lo == hi:
		mean, std = lo, 0
	case mean < lo:
		mean = lo
	case mean > hi:
		mean = hi
	}

	return models.AggregatedModelStat{
		Model:            g.model,
		Samples:          len(g.confidences),
		MeanConfidence:   mean,
		MinConfidence:    lo,
		MaxConfidence:    hi,
		StdDevConfidence: std,
		MeanProcessingMs: stat.Mean(g.times, nil),
		Prediction:       g.prediction,
	}
}
