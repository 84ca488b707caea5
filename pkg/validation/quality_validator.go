package validation

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/pkg/models"
)

// QualityThresholds defines configurable thresholds for input validation
type QualityThresholds struct {
	// Resource limits, enforced as errors
	MaxWidth       int
	MaxHeight      int
	MaxTotalPixels int

	// Below these the image is upsampled heavily
	MinWidth  int
	MinHeight int

	// Intensity thresholds on the 0..255 scale
	MinBrightness float64
	MaxBrightness float64
	MinContrast   float64

	// Mean absolute difference between color channels
	MaxChannelImbalance float64

	// Variance of the Laplacian below which the input looks blurred
	MinSharpness float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MaxWidth:            8192,
		MaxHeight:           8192,
		MaxTotalPixels:      40_000_000,
		MinWidth:            models.CanonicalWidth,
		MinHeight:           models.CanonicalHeight,
		MinBrightness:       20.0,
		MaxBrightness:       235.0,
		MinContrast:         8.0,
		MaxChannelImbalance: 12.0,
		MinSharpness:        25.0,
	}
}

// QualityValidator checks raw inputs before normalization. Only resource
// limits are errors; everything else is advisory because the equalizer
// accepts any non-empty image.
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ImageQualityMetrics are the input measurements the checks run on
type ImageQualityMetrics struct {
	Width            int
	Height           int
	Brightness       float64
	Contrast         float64
	ChannelImbalance float64
	// Sharpness is nil for inputs too small for the 3x3 kernel
	Sharpness *float64
}

// MeasureRaw computes ImageQualityMetrics from a raw buffer. Fully
// transparent pixels are ignored for intensity.
func MeasureRaw(raw models.RawImage) (ImageQualityMetrics, error) {
	if err := raw.Validate(); err != nil {
		return ImageQualityMetrics{}, err
	}

	m := ImageQualityMetrics{Width: raw.Width, Height: raw.Height}
	var sum, sumSq, imbalance float64
	var n int

	for i := 0; i < raw.Width*raw.Height; i++ {
		px := raw.Pix[i*raw.Channels : (i+1)*raw.Channels]
		var r, g, b float64
		switch raw.Channels {
		case 1, 2:
			r, g, b = float64(px[0]), float64(px[0]), float64(px[0])
		default:
			r, g, b = float64(px[0]), float64(px[1]), float64(px[2])
		}
		if (raw.Channels == 2 && px[1] == 0) || (raw.Channels == 4 && px[3] == 0) {
			continue
		}
		v := (r + g + b) / 3
		sum += v
		sumSq += v * v
		imbalance += (math.Abs(r-g) + math.Abs(r-b) + math.Abs(g-b)) / 3
		n++
	}

	if n > 0 {
		mean := sum / float64(n)
		m.Brightness = mean
		m.Contrast = math.Sqrt(math.Max(0, sumSq/float64(n)-mean*mean))
		m.ChannelImbalance = imbalance / float64(n)
	}
	m.Sharpness = laplacianVariance(raw)
	return m, nil
}

// laplacianVariance applies the [0 1 0; 1 -4 1; 0 1 0] kernel to the
// intensity plane and returns the variance of the responses.
func laplacianVariance(raw models.RawImage) *float64 {
	w, h := raw.Width, raw.Height
	if w < 3 || h < 3 {
		return nil
	}

	gray := make([]float64, w*h)
	for i := range gray {
		px := raw.Pix[i*raw.Channels : (i+1)*raw.Channels]
		if raw.Channels <= 2 {
			gray[i] = float64(px[0])
		} else {
			gray[i] = (float64(px[0]) + float64(px[1]) + float64(px[2])) / 3
		}
	}

	data := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := y*w + x
			data = append(data, -4*gray[c]+gray[c-w]+gray[c+w]+gray[c-1]+gray[c+1])
		}
	}

	v := stat.Variance(data, nil)
	if math.IsNaN(v) {
		v = 0
	}
	return &v
}

// ValidateInput checks the metrics of one input image
func (qv *QualityValidator) ValidateInput(metrics ImageQualityMetrics) []QualityIssue {
	var issues []QualityIssue

	// 1. Resource limits
	totalPixels := metrics.Width * metrics.Height
	if metrics.Width > qv.thresholds.MaxWidth ||
		metrics.Height > qv.thresholds.MaxHeight ||
		totalPixels > qv.thresholds.MaxTotalPixels {
		issues = append(issues, QualityIssue{
			Type:        "too_large",
			Message:     fmt.Sprintf("Image is %dx%d, larger than the accepted size.", metrics.Width, metrics.Height),
			Severity:    "error",
			ActualValue: float64(totalPixels),
			Threshold:   float64(qv.thresholds.MaxTotalPixels),
		})
	}

	// 2. Resolution
	if metrics.Width < qv.thresholds.MinWidth || metrics.Height < qv.thresholds.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     "Image is smaller than the model input and will be upsampled.",
			Severity:    "warning",
			ActualValue: float64(totalPixels),
			Threshold:   float64(qv.thresholds.MinWidth * qv.thresholds.MinHeight),
		})
	}

	// 3. Exposure
	if metrics.Brightness <= qv.thresholds.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "underexposure",
			Message:     "Image is very dark. Equalization may amplify noise.",
			Severity:    "warning",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if metrics.Brightness >= qv.thresholds.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "overexposure",
			Message:     "Image is almost white. Detail may be lost.",
			Severity:    "warning",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	// 4. Contrast
	if metrics.Contrast < qv.thresholds.MinContrast {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "Image has almost no contrast.",
			Severity:    "warning",
			ActualValue: metrics.Contrast,
			Threshold:   qv.thresholds.MinContrast,
		})
	}

	// 5. Color
	if metrics.ChannelImbalance > qv.thresholds.MaxChannelImbalance {
		issues = append(issues, QualityIssue{
			Type:        "color_image",
			Message:     "Image has strong color. Radiographs are expected to be grayscale.",
			Severity:    "warning",
			ActualValue: metrics.ChannelImbalance,
			Threshold:   qv.thresholds.MaxChannelImbalance,
		})
	}

	// 6. Sharpness
	if metrics.Sharpness != nil && *metrics.Sharpness < qv.thresholds.MinSharpness {
		issues = append(issues, QualityIssue{
			Type:        "blurry",
			Message:     "Image looks blurred. Fine structures may be lost after resampling.",
			Severity:    "warning",
			ActualValue: *metrics.Sharpness,
			Threshold:   qv.thresholds.MinSharpness,
		})
	}

	return issues
}

// ValidateRaw measures raw and returns its issues, or an invalid image error
// when it breaks a resource limit or its buffer is inconsistent.
func (qv *QualityValidator) ValidateRaw(raw models.RawImage) ([]QualityIssue, error) {
	metrics, err := MeasureRaw(raw)
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image buffer is invalid", err)
	}
	issues := qv.ValidateInput(metrics)
	if qv.HasCriticalIssues(issues) {
		var msgs []string
		for _, issue := range issues {
			if issue.Severity == "error" {
				msgs = append(msgs, issue.Message)
			}
		}
		return issues, apperrors.NewInvalidImageError("image rejected", nil).WithDetails(strings.Join(msgs, " "))
	}
	return issues, nil
}

// ConvertIssuesToMessages converts quality issues to simple messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
