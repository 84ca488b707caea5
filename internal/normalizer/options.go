package normalizer

import (
	"fmt"
	"strings"

	"github.com/nfnt/resize"
)

// Resample selects the interpolation kernel used to reach the canonical size
type Resample string

const (
	ResampleBilinear Resample = "bilinear"
	ResampleNearest  Resample = "nearest"
)

// ParseResample accepts the names used in configuration
func ParseResample(s string) (Resample, error) {
	switch Resample(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResampleBilinear:
		return ResampleBilinear, nil
	case ResampleNearest, "nearest-neighbor":
		return ResampleNearest, nil
	}
	return "", fmt.Errorf("unknown resample kernel %q", s)
}

func (r Resample) interpolation() resize.InterpolationFunction {
	if r == ResampleNearest {
		return resize.NearestNeighbor
	}
	return resize.Bilinear
}

// Options configures a Normalizer. A normalizer is fixed once built so the
// same input always yields the same output.
type Options struct {
	Resample Resample

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns bilinear resampling and one worker per CPU
func DefaultOptions() Options {
	return Options{
		Resample:   ResampleBilinear,
		MaxWorkers: 0, // Use default CPU count
	}
}

// WithResample returns options using the given kernel
func (opts Options) WithResample(r Resample) Options {
	opts.Resample = r
	return opts
}

// WithNearestNeighbor switches to nearest-neighbor resampling
func (opts Options) WithNearestNeighbor() Options {
	opts.Resample = ResampleNearest
	return opts
}

// WithMaxWorkers bounds the goroutines used for per-pixel work
func (opts Options) WithMaxWorkers(n int) Options {
	opts.MaxWorkers = n
	return opts
}
