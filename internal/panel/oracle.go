package panel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/pkg/models"
)

// Confidence bounds every realized result is clamped to
const (
	MinConfidence = 0.72
	MaxConfidence = 0.99
)

// Oracle answers for one (image, model) pair. Implementations must not
// retain or modify the image.
type Oracle interface {
	Invoke(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error)
}

// OracleFunc adapts a function to the Oracle interface
type OracleFunc func(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error)

func (f OracleFunc) Invoke(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	return f(ctx, img, model)
}

// ClampConfidence bounds v to [MinConfidence, MaxConfidence]
func ClampConfidence(v float64) float64 {
	return math.Min(MaxConfidence, math.Max(MinConfidence, v))
}

// Adapter runs a whole panel against one image.
type Adapter struct {
	oracle Oracle
}

// NewAdapter wraps an oracle
func NewAdapter(oracle Oracle) *Adapter {
	return &Adapter{oracle: oracle}
}

// InvokePanel calls the oracle once per descriptor in panel order. It returns
// either one result per descriptor or an error, never a partial list.
func (a *Adapter) InvokePanel(ctx context.Context, img *models.NormalizedImage, panel []models.ModelDescriptor) ([]models.InvocationResult, error) {
	results := make([]models.InvocationResult, 0, len(panel))
	start := time.Now()

	for _, d := range panel {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pred, err := a.oracle.Invoke(ctx, img, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperrors.NewOracleError(fmt.Sprintf("model %s failed", d.ID), err)
		}
		if err := checkPrediction(d, pred); err != nil {
			return nil, apperrors.NewOracleError(fmt.Sprintf("model %s returned an invalid result", d.ID), err)
		}

		results = append(results, models.InvocationResult{
			Model:            d,
			Confidence:       ClampConfidence(pred.Confidence),
			ProcessingTimeMs: pred.ProcessingTimeMs,
			Prediction:       pred.Label,
		})
	}

	logger.WithFields(logrus.Fields{
		"models":      len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Panel invocation completed")

	return results, nil
}

func checkPrediction(d models.ModelDescriptor, p models.Prediction) error {
	switch {
	case math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1:
		return &MalformedResultError{ModelID: d.ID, Reason: fmt.Sprintf("confidence %v outside [0,1]", p.Confidence)}
	case math.IsNaN(p.ProcessingTimeMs) || p.ProcessingTimeMs < 0:
		return &MalformedResultError{ModelID: d.ID, Reason: fmt.Sprintf("negative processing time %v", p.ProcessingTimeMs)}
	case p.Label != models.Malignant && p.Label != models.Benign:
		return &MalformedResultError{ModelID: d.ID, Reason: fmt.Sprintf("unknown label %q", p.Label)}
	}
	return nil
}
