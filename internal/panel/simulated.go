package panel

import (
	"context"
	"time"

	"go-xray-inspector/pkg/models"
)

const (
	noiseSpan    = 0.08 // symmetric, up to +/-0.04
	minLatencyMs = 80
	latencySpan  = 300
)

// SimulatedOracle stands in for real inference. Confidence is the model's
// baseline plus bounded noise; the label is the model's default.
type SimulatedOracle struct {
	rng     RandomSource
	latency time.Duration
}

// NewSimulatedOracle creates a simulated oracle. latency adds a real wait per
// invocation and may be zero.
func NewSimulatedOracle(rng RandomSource, latency time.Duration) *SimulatedOracle {
	if rng == nil {
		rng = NewRandomSource(0)
	}
	return &SimulatedOracle{rng: rng, latency: latency}
}

func (s *SimulatedOracle) Invoke(ctx context.Context, _ *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Prediction{}, ctx.Err()
		case <-timer.C:
		}
	}

	confidence := ClampConfidence(model.Confidence + (s.rng.Float64()-0.5)*noiseSpan)
	elapsed := s.rng.Float64()*latencySpan + minLatencyMs

	return models.Prediction{
		Confidence:       confidence,
		ProcessingTimeMs: elapsed,
		Label:            model.Prediction,
	}, nil
}

// FixedOracle returns preset confidences keyed by model id and falls back
// to the descriptor baseline. Processing time is constant.
type FixedOracle struct {
	Confidences      map[string]float64
	Labels           map[string]models.PredictionLabel
	ProcessingTimeMs float64
}

func (f FixedOracle) Invoke(ctx context.Context, _ *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	conf, ok := f.Confidences[model.ID]
	if !ok {
		conf = model.Confidence
	}
	label, ok := f.Labels[model.ID]
	if !ok {
		label = model.Prediction
	}
	return models.Prediction{Confidence: conf, ProcessingTimeMs: f.ProcessingTimeMs, Label: label}, nil
}
