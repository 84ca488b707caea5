package panel

import (
	"strings"

	"github.com/arbovm/levenshtein"

	"go-xray-inspector/pkg/models"
)

// Panel set names accepted by configuration and the HTTP API
const (
	SetFull  = "full"
	SetBatch = "batch"
)

func model(id string, cat models.Category, acc, conf float64, params models.ParamCount, pred models.PredictionLabel) models.ModelDescriptor {
	return models.ModelDescriptor{
		ID:         id,
		Category:   cat,
		Accuracy:   acc,
		Confidence: conf,
		Params:     params,
		Prediction: pred,
	}
}

var fullPanel = []models.ModelDescriptor{
	// Deep CNN
	model("ResNet-50", models.CategoryDeepCNN, 0.94, 0.89, models.Params(25.6), models.Malignant),
	model("ResNet-101", models.CategoryDeepCNN, 0.95, 0.91, models.Params(44.5), models.Malignant),
	model("ResNet-152", models.CategoryDeepCNN, 0.96, 0.93, models.Params(60.2), models.Malignant),
	model("ResNeXt-50", models.CategoryDeepCNN, 0.95, 0.90, models.Params(25.0), models.Malignant),

	// VGG
	model("VGG-16", models.CategoryVGG, 0.91, 0.85, models.Params(138), models.Malignant),
	model("VGG-19", models.CategoryVGG, 0.92, 0.86, models.Params(144), models.Malignant),

	// EfficientNet
	model("EfficientNet-B0", models.CategoryEfficientNet, 0.93, 0.88, models.Params(5.3), models.Malignant),
	model("EfficientNet-B3", models.CategoryEfficientNet, 0.96, 0.92, models.Params(12), models.Malignant),
	model("EfficientNet-B7", models.CategoryEfficientNet, 0.97, 0.94, models.Params(66), models.Malignant),
	model("EfficientNetV2", models.CategoryEfficientNet, 0.97, 0.95, models.Params(21.5), models.Malignant),

	// DenseNet
	model("DenseNet-121", models.CategoryDenseNet, 0.93, 0.87, models.Params(8.0), models.Malignant),
	model("DenseNet-169", models.CategoryDenseNet, 0.94, 0.89, models.Params(14.1), models.Malignant),
	model("DenseNet-201", models.CategoryDenseNet, 0.95, 0.90, models.Params(20.0), models.Malignant),

	// Inception
	model("Inception-v3", models.CategoryInception, 0.93, 0.88, models.Params(23.8), models.Malignant),
	model("Inception-v4", models.CategoryInception, 0.94, 0.89, models.Params(42.7), models.Malignant),
	model("Inception-ResNet-v2", models.CategoryInception, 0.95, 0.91, models.Params(55.8), models.Malignant),
	model("Xception", models.CategoryInception, 0.94, 0.89, models.Params(22.9), models.Malignant),

	// Mobile and lightweight
	model("MobileNet-v1", models.CategoryMobile, 0.88, 0.81, models.Params(4.2), models.Benign),
	model("MobileNet-v2", models.CategoryMobile, 0.89, 0.83, models.Params(3.5), models.Malignant),
	model("MobileNet-v3", models.CategoryMobile, 0.90, 0.84, models.Params(5.4), models.Malignant),
	model("SqueezeNet", models.CategoryMobile, 0.86, 0.79, models.Params(1.2), models.Benign),
	model("ShuffleNet", models.CategoryMobile, 0.87, 0.80, models.Params(2.3), models.Benign),

	// Vision transformers
	model("ViT-Base", models.CategoryTransformer, 0.95, 0.91, models.Params(86), models.Malignant),
	model("ViT-Large", models.CategoryTransformer, 0.96, 0.93, models.Params(304), models.Malignant),
	model("DeiT-Base", models.CategoryTransformer, 0.94, 0.90, models.Params(87), models.Malignant),
	model("Swin-Transformer", models.CategoryTransformer, 0.97, 0.94, models.Params(88), models.Malignant),
	model("BEiT", models.CategoryTransformer, 0.95, 0.91, models.Params(86), models.Malignant),

	// Medical
	model("CheXNet", models.CategoryMedical, 0.96, 0.92, models.Params(7.0), models.Malignant),
	model("DeepChest", models.CategoryMedical, 0.95, 0.91, models.Params(15.3), models.Malignant),
	model("ChestX-ray14", models.CategoryMedical, 0.94, 0.89, models.Params(25.6), models.Malignant),

	// Attention
	model("SENet-154", models.CategoryAttention, 0.96, 0.92, models.Params(115), models.Malignant),
	model("CBAM-ResNet", models.CategoryAttention, 0.95, 0.90, models.Params(28.1), models.Malignant),
	model("ECA-Net", models.CategoryAttention, 0.94, 0.89, models.Params(25.7), models.Malignant),

	// NAS
	model("NASNet-Large", models.CategoryNAS, 0.96, 0.92, models.Params(88.9), models.Malignant),
	model("AmoebaNet", models.CategoryNAS, 0.95, 0.91, models.Params(86.7), models.Malignant),
	model("PNASNet", models.CategoryNAS, 0.95, 0.90, models.Params(86.1), models.Malignant),

	// Hybrid
	model("ConvNeXt", models.CategoryHybrid, 0.97, 0.94, models.Params(89), models.Malignant),
	model("CoAtNet", models.CategoryHybrid, 0.97, 0.95, models.Params(168), models.Malignant),
	model("NFNet", models.CategoryHybrid, 0.96, 0.93, models.Params(120), models.Malignant),

	model("Ensemble (Top-5)", models.CategoryEnsemble, 0.98, 0.96, models.Unspecified, models.Malignant),
}

var batchPanelIDs = []string{
	"ResNet-50",
	"ResNet-101",
	"EfficientNet-B7",
	"DenseNet-201",
	"ViT-Large",
	"Swin-Transformer",
	"CheXNet",
	"ConvNeXt",
	"MobileNet-v3",
	"Ensemble (Top-5)",
}

// DefaultPanel returns the full research panel used for single-image runs.
// The caller owns the returned slice.
func DefaultPanel() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, len(fullPanel))
	copy(out, fullPanel)
	return out
}

// BatchPanel returns the smaller panel used for batch runs.
func BatchPanel() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, len(batchPanelIDs))
	for _, id := range batchPanelIDs {
		if d, ok := Lookup(fullPanel, id); ok {
			out = append(out, d)
		}
	}
	return out
}

// BySet returns the built-in panel with the given name
func BySet(set string) ([]models.ModelDescriptor, bool) {
	switch strings.ToLower(strings.TrimSpace(set)) {
	case "", SetFull:
		return DefaultPanel(), true
	case SetBatch:
		return BatchPanel(), true
	}
	return nil, false
}

// Lookup finds a descriptor by id, ignoring case.
func Lookup(panel []models.ModelDescriptor, id string) (models.ModelDescriptor, bool) {
	for _, d := range panel {
		if strings.EqualFold(d.ID, id) {
			return d, true
		}
	}
	return models.ModelDescriptor{}, false
}

// Suggest returns the id closest to the given one by edit distance, or ""
// when nothing is reasonably close.
func Suggest(panel []models.ModelDescriptor, id string) string {
	needle := strings.ToLower(strings.TrimSpace(id))
	if needle == "" {
		return ""
	}

	best, bestDist := "", -1
	for _, d := range panel {
		dist := levenshtein.Distance(needle, strings.ToLower(d.ID))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d.ID, dist
		}
	}

	// More than half the characters wrong is not a typo.
	if bestDist < 0 || bestDist*2 > len(needle) {
		return ""
	}
	return best
}

// Validate checks every descriptor and rejects duplicate ids.
func Validate(panel []models.ModelDescriptor) error {
	if len(panel) == 0 {
		return errEmptyPanel
	}
	seen := make(map[string]struct{}, len(panel))
	for _, d := range panel {
		if err := d.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(d.ID)
		if _, dup := seen[key]; dup {
			return &DuplicateModelError{ID: d.ID}
		}
		seen[key] = struct{}{}
	}
	return nil
}
