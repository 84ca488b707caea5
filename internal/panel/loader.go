package panel

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"go-xray-inspector/pkg/models"
)

// fileModel is one entry of a panel file. Params is kept as text so both
// "25.6M" and bare numbers decode.
type fileModel struct {
	ID         string  `mapstructure:"id"`
	Name       string  `mapstructure:"name"`
	Category   string  `mapstructure:"category"`
	Accuracy   float64 `mapstructure:"accuracy"`
	Confidence float64 `mapstructure:"confidence"`
	Params     string  `mapstructure:"params"`
	Prediction string  `mapstructure:"prediction"`
}

type panelFile struct {
	Models []fileModel `mapstructure:"models"`
	Batch  []string    `mapstructure:"batch"`
}

// LoadFile reads a panel from a YAML or JSON file with a top level "models"
// list. It is meant to be called once at startup.
func LoadFile(path string) ([]models.ModelDescriptor, error) {
	full, _, err := LoadSets(path)
	return full, err
}

// LoadSets reads both panel sets from one file. The optional top level
// "batch" list names the models of the batch set; without it the batch set
// is the whole file.
func LoadSets(path string) (full, batch []models.ModelDescriptor, err error) {
	pf, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}

	full = make([]models.ModelDescriptor, 0, len(pf.Models))
	for i, m := range pf.Models {
		d, err := m.descriptor()
		if err != nil {
			return nil, nil, fmt.Errorf("panel file %s, model %d: %w", path, i+1, err)
		}
		full = append(full, d)
	}
	if err := Validate(full); err != nil {
		return nil, nil, fmt.Errorf("panel file %s: %w", path, err)
	}

	if len(pf.Batch) == 0 {
		batch = make([]models.ModelDescriptor, len(full))
		copy(batch, full)
		return full, batch, nil
	}

	batch = make([]models.ModelDescriptor, 0, len(pf.Batch))
	for _, id := range pf.Batch {
		d, ok := Lookup(full, id)
		if !ok {
			return nil, nil, fmt.Errorf("panel file %s: batch model %q is not in the models list", path, id)
		}
		batch = append(batch, d)
	}
	if err := Validate(batch); err != nil {
		return nil, nil, fmt.Errorf("panel file %s, batch set: %w", path, err)
	}
	return full, batch, nil
}

func readFile(path string) (*panelFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		return nil, fmt.Errorf("unsupported panel file type %q", filepath.Ext(path))
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read panel file %s: %w", path, err)
	}

	var pf panelFile
	if err := v.Unmarshal(&pf); err != nil {
		return nil, fmt.Errorf("failed to decode panel file %s: %w", path, err)
	}
	return &pf, nil
}

func (m fileModel) descriptor() (models.ModelDescriptor, error) {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		id = strings.TrimSpace(m.Name)
	}

	params, err := models.ParseParamCount(m.Params)
	if err != nil {
		return models.ModelDescriptor{}, err
	}

	pred := models.Malignant
	if strings.TrimSpace(m.Prediction) != "" {
		if pred, err = models.ParsePredictionLabel(m.Prediction); err != nil {
			return models.ModelDescriptor{}, err
		}
	}

	return models.ModelDescriptor{
		ID:         id,
		Category:   models.Category(strings.TrimSpace(m.Category)),
		Accuracy:   m.Accuracy,
		Confidence: m.Confidence,
		Params:     params,
		Prediction: pred,
	}, nil
}
