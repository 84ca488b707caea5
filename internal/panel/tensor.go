package panel

import (
	"fmt"
	"math"

	"go-xray-inspector/pkg/models"
)

// Tensor lays the normalized image out as a planar float32 buffer of
// channels x H x W with values in [0,1]. The gray plane is repeated for
// every channel.
func Tensor(img *models.NormalizedImage, channels int) ([]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	plane := img.Width * img.Height
	if len(img.Gray) != plane {
		return nil, fmt.Errorf("gray plane holds %d samples, expected %d", len(img.Gray), plane)
	}

	out := make([]float32, channels*plane)
	for i, v := range img.Gray {
		f := float32(v) / 255.0
		for c := 0; c < channels; c++ {
			out[c*plane+i] = f
		}
	}
	return out, nil
}

// Softmax converts raw scores into probabilities
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := float64(logits[0])
	for _, v := range logits[1:] {
		maxVal = math.Max(maxVal, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Classify picks the most probable class. classes and probs are parallel;
// only "Malignant" and "Benign" (any case) are accepted as class names.
func Classify(classes []string, probs []float64) (models.PredictionLabel, float64, error) {
	n := len(classes)
	if len(probs) < n {
		n = len(probs)
	}
	if n == 0 {
		return "", 0, fmt.Errorf("model produced no class scores")
	}

	best := 0
	for i := 1; i < n; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	label, err := models.ParsePredictionLabel(classes[best])
	if err != nil {
		return "", 0, err
	}
	return label, probs[best], nil
}
