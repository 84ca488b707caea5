package ranking

import (
	"reflect"
	"testing"

	"go-xray-inspector/pkg/models"
)

func res(id string, cat models.Category, conf, ms float64, params models.ParamCount, label models.PredictionLabel) models.InvocationResult {
	return models.InvocationResult{
		Model: models.ModelDescriptor{
			ID: id, Category: cat, Accuracy: 0.9, Confidence: 0.9, Params: params, Prediction: label,
		},
		Confidence:       conf,
		ProcessingTimeMs: ms,
		Prediction:       label,
	}
}

func ids(scores []models.InvocationResult) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.Model.ID
	}
	return out
}

func sample() []models.InvocationResult {
	return []models.InvocationResult{
		res("A", models.CategoryDeepCNN, 0.90, 120, models.Params(25.6), models.Malignant),
		res("B", models.CategoryMobile, 0.80, 95.4, models.Params(4.2), models.Benign),
		res("C", models.CategoryDeepCNN, 0.95, 310, models.Params(60.2), models.Malignant),
	}
}

func TestBestModel(t *testing.T) {
	best, ok := BestModel(sample())
	if !ok || best.Model.ID != "C" {
		t.Errorf("best = %s (ok=%v), want C", best.Model.ID, ok)
	}

	tied := []models.InvocationResult{
		res("first", models.CategoryVGG, 0.9, 1, models.Unspecified, models.Benign),
		res("second", models.CategoryVGG, 0.9, 1, models.Unspecified, models.Benign),
	}
	if best, _ := BestModel(tied); best.Model.ID != "first" {
		t.Errorf("tie went to %s, want first", best.Model.ID)
	}

	if _, ok := BestModel([]models.InvocationResult{}); ok {
		t.Error("empty input should report ok=false")
	}
}

func TestTopN(t *testing.T) {
	entries := sample()

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"top two", 2, []string{"C", "A"}},
		{"more than available", 10, []string{"C", "A", "B"}},
		{"default", 0, []string{"C", "A", "B"}},
		{"one", 1, []string{"C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(TopN(entries, tt.n))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopN(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}

	if ids(entries)[0] != "A" {
		t.Error("TopN reordered its input")
	}
}

func TestTopN_PrefixProperty(t *testing.T) {
	entries := sample()
	entries = append(entries,
		res("D", models.CategoryNAS, 0.90, 1, models.Params(5.3), models.Malignant),
		res("E", models.CategoryNAS, 0.72, 1, models.Params(5.3), models.Malignant),
	)
	all := ids(TopN(entries, len(entries)))
	for n := 1; n <= len(entries); n++ {
		got := ids(TopN(entries, n))
		if !reflect.DeepEqual(got, all[:n]) {
			t.Errorf("TopN(%d) = %v is not a prefix of %v", n, got, all)
		}
	}
	// equal confidences keep input order
	if all[1] != "A" || all[2] != "D" {
		t.Errorf("unstable tie order: %v", all)
	}
}

func TestCategoryStats(t *testing.T) {
	stats := CategoryStats(sample())
	want := []models.CategoryStat{
		{Category: models.CategoryDeepCNN, Count: 2, AvgConfidence: 92.5, AvgAccuracy: 90},
		{Category: models.CategoryMobile, Count: 1, AvgConfidence: 80, AvgAccuracy: 90},
	}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("CategoryStats = %+v, want %+v", stats, want)
	}

	total := 0
	for _, s := range stats {
		total += s.Count
	}
	if total != 3 {
		t.Errorf("counts sum to %d, want 3", total)
	}
}

func TestCategoriesAndFilter(t *testing.T) {
	entries := sample()

	cats := Categories(entries)
	if !reflect.DeepEqual(cats, []models.Category{models.CategoryDeepCNN, models.CategoryMobile}) {
		t.Errorf("Categories = %v", cats)
	}

	tests := []struct {
		category string
		want     []string
	}{
		{"all", []string{"A", "B", "C"}},
		{"", []string{"A", "B", "C"}},
		{"Deep CNN", []string{"A", "C"}},
		{"mobile", []string{"B"}},
		{"Transformer", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := ids(FilterByCategory(entries, tt.category))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterByCategory(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestAccuracyVsParams_SkipsUnspecified(t *testing.T) {
	entries := append(sample(), res("Ensemble", models.CategoryEnsemble, 0.97, 500, models.Unspecified, models.Malignant))

	points := AccuracyVsParams(entries)
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if points[0] != (models.AccuracyParamsPoint{ModelID: "A", Accuracy: 90, Params: 25.6, Confidence: 90}) {
		t.Errorf("unexpected point %+v", points[0])
	}
}

func TestPredictionDistribution(t *testing.T) {
	d := PredictionDistribution(sample())
	if d.Malignant != 2 || d.Benign != 1 {
		t.Errorf("distribution = %+v", d)
	}
}

func TestFastestModels(t *testing.T) {
	got := FastestModels(sample(), 2)
	want := []models.ProcessingTime{{ModelID: "B", TimeMs: 95}, {ModelID: "A", TimeMs: 120}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FastestModels = %+v, want %+v", got, want)
	}
	if len(FastestModels(sample(), 0)) != 3 {
		t.Error("default limit should cover all three entries")
	}
}

func TestViewsOnAggregates(t *testing.T) {
	stats := []models.AggregatedModelStat{
		{Model: models.ModelDescriptor{ID: "X", Category: models.CategoryMedical, Accuracy: 0.96}, MeanConfidence: 0.85, MeanProcessingMs: 200, Prediction: models.Malignant},
		{Model: models.ModelDescriptor{ID: "Y", Category: models.CategoryMedical, Accuracy: 0.94}, MeanConfidence: 0.91, MeanProcessingMs: 150, Prediction: models.Benign},
	}

	best, ok := BestModel(stats)
	if !ok || best.Model.ID != "Y" {
		t.Errorf("best aggregate = %s", best.Model.ID)
	}
	if fastest := FastestModels(stats, 1); fastest[0].ModelID != "Y" {
		t.Errorf("fastest aggregate = %+v", fastest)
	}
	if s := Scores(stats); s[0].Confidence != 0.85 || s[1].ProcessingTimeMs != 150 {
		t.Errorf("scores = %+v", s)
	}
}

func TestEmptyInputs(t *testing.T) {
	var empty []models.InvocationResult
	if len(TopN(empty, 3)) != 0 || len(CategoryStats(empty)) != 0 || len(Categories(empty)) != 0 {
		t.Error("expected empty views")
	}
	if len(AccuracyVsParams(empty)) != 0 || len(FastestModels(empty, 5)) != 0 {
		t.Error("expected empty views")
	}
	if d := PredictionDistribution(empty); d.Malignant != 0 || d.Benign != 0 {
		t.Error("expected zero distribution")
	}
}
