package normalizer

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/pkg/models"
)

// Normalizer turns a raw image into the canonical 224x224 equalized
// grayscale form the model panel consumes.
type Normalizer interface {
	Normalize(raw models.RawImage) (*models.NormalizedImage, error)
	NormalizeWithReport(raw models.RawImage) (*models.NormalizedImage, models.NormalizationReport, error)
}

type normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer with fixed options
func NewNormalizer(opts Options) Normalizer {
	if opts.Resample == "" {
		opts.Resample = ResampleBilinear
	}
	return &normalizer{opts: opts}
}

// Normalize resamples, converts to gray and equalizes. It never mutates raw.
func (n *normalizer) Normalize(raw models.RawImage) (*models.NormalizedImage, error) {
	img, _, err := n.normalize(raw, false)
	return img, err
}

// NormalizeWithReport also returns intensity statistics before and after
// equalization.
func (n *normalizer) NormalizeWithReport(raw models.RawImage) (*models.NormalizedImage, models.NormalizationReport, error) {
	return n.normalize(raw, true)
}

func (n *normalizer) normalize(raw models.RawImage, withReport bool) (*models.NormalizedImage, models.NormalizationReport, error) {
	var report models.NormalizationReport

	src, err := raw.Image()
	if err != nil {
		return nil, report, apperrors.NewInvalidImageError("image cannot be normalized", err)
	}

	resized := resize.Resize(models.CanonicalWidth, models.CanonicalHeight, src, n.opts.Resample.interpolation())
	canonical := toNRGBA(resized)

	gray, alpha := grayscale(canonical, n.opts.MaxWorkers)
	h := histogram(gray)
	lut, uniform := equalize(h, len(gray))

	out := &models.NormalizedImage{
		Width:  models.CanonicalWidth,
		Height: models.CanonicalHeight,
		Gray:   make([]uint8, len(gray)),
		Alpha:  alpha,
	}
	for i, v := range gray {
		out.Gray[i] = lut[v]
	}

	if withReport {
		report = buildReport(gray, out.Gray, h)
		report.UniformInput = uniform
		report.OriginalWidth = raw.Width
		report.OriginalHeight = raw.Height
	}
	return out, report, nil
}

// toNRGBA returns img as an origin-anchored *image.NRGBA. The resampler
// hands back premultiplied RGBA for most kernels.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
