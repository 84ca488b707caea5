package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category groups models by architecture family
type Category string

const (
	CategoryDeepCNN      Category = "Deep CNN"
	CategoryVGG          Category = "VGG"
	CategoryEfficientNet Category = "EfficientNet"
	CategoryDenseNet     Category = "DenseNet"
	CategoryInception    Category = "Inception"
	CategoryMobile       Category = "Mobile"
	CategoryTransformer  Category = "Transformer"
	CategoryMedical      Category = "Medical"
	CategoryAttention    Category = "Attention"
	CategoryNAS          Category = "NAS"
	CategoryHybrid       Category = "Hybrid"
	CategoryEnsemble     Category = "Ensemble"
)

var knownCategories = map[Category]struct{}{
	CategoryDeepCNN: {}, CategoryVGG: {}, CategoryEfficientNet: {}, CategoryDenseNet: {},
	CategoryInception: {}, CategoryMobile: {}, CategoryTransformer: {}, CategoryMedical: {},
	CategoryAttention: {}, CategoryNAS: {}, CategoryHybrid: {}, CategoryEnsemble: {},
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// PredictionLabel is the binary outcome a model reports
type PredictionLabel string

const (
	Malignant PredictionLabel = "Malignant"
	Benign    PredictionLabel = "Benign"
)

// ParsePredictionLabel accepts the label in any letter case.
func ParsePredictionLabel(s string) (PredictionLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "malignant":
		return Malignant, nil
	case "benign":
		return Benign, nil
	}
	return "", fmt.Errorf("unknown prediction label %q", s)
}

// ParamCount is a model's parameter count in millions. Ensembles have no
// single count and are marked unspecified.
type ParamCount struct {
	Millions  float64
	Specified bool
}

// Params returns a specified parameter count.
func Params(millions float64) ParamCount {
	return ParamCount{Millions: millions, Specified: true}
}

// Unspecified is the parameter count of ensembles.
var Unspecified = ParamCount{}

// ParseParamCount reads "25.6M", "138" or "N/A".
func ParseParamCount(s string) (ParamCount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return Unspecified, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(s, "M"), "m"), 64)
	if err != nil || v < 0 {
		return Unspecified, fmt.Errorf("invalid parameter count %q", s)
	}
	return Params(v), nil
}

func (p ParamCount) String() string {
	if !p.Specified {
		return "N/A"
	}
	return strconv.FormatFloat(p.Millions, 'f', -1, 64) + "M"
}

// MarshalJSON writes the text form used by the panel files.
func (p ParamCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the text form or a bare number of millions.
func (p *ParamCount) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*p = Params(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseParamCount(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ModelDescriptor is the static metadata of one model in the panel.
type ModelDescriptor struct {
	ID         string          `json:"id"`
	Category   Category        `json:"category"`
	Accuracy   float64         `json:"accuracy"`
	Confidence float64         `json:"confidence"`
	Params     ParamCount      `json:"params"`
	Prediction PredictionLabel `json:"prediction"`
}

// Validate checks the descriptor invariants.
func (d ModelDescriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("model id is empty")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("model %s: unknown category %q", d.ID, d.Category)
	}
	if d.Accuracy <= 0 || d.Accuracy >= 1 {
		return fmt.Errorf("model %s: accuracy %v outside (0,1)", d.ID, d.Accuracy)
	}
	if d.Confidence <= 0 || d.Confidence >= 1 {
		return fmt.Errorf("model %s: confidence %v outside (0,1)", d.ID, d.Confidence)
	}
	if d.Prediction != Malignant && d.Prediction != Benign {
		return fmt.Errorf("model %s: unknown prediction %q", d.ID, d.Prediction)
	}
	return nil
}

// Prediction is what the oracle returns for one (image, model) pair.
type Prediction struct {
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	Label            PredictionLabel `json:"prediction"`
}
