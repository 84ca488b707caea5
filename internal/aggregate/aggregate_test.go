package aggregate

import (
	"errors"
	"math"
	"testing"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/pkg/models"
)

var (
	modelA = models.ModelDescriptor{ID: "A", Category: models.CategoryDeepCNN, Accuracy: 0.94, Confidence: 0.89, Params: models.Params(25.6), Prediction: models.Malignant}
	modelB = models.ModelDescriptor{ID: "B", Category: models.CategoryMobile, Accuracy: 0.88, Confidence: 0.81, Params: models.Params(4.2), Prediction: models.Benign}
)

func result(m models.ModelDescriptor, conf, ms float64) models.InvocationResult {
	return models.InvocationResult{Model: m, Confidence: conf, ProcessingTimeMs: ms, Prediction: m.Prediction}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate_TwoImagesOneModel(t *testing.T) {
	run := &models.BatchRun{Entries: []models.ImageEntry{
		{Index: 1, Results: []models.InvocationResult{result(modelA, 0.80, 100)}},
		{Index: 2, Results: []models.InvocationResult{result(modelA, 0.90, 200)}},
	}}

	stats, err := Aggregate(run)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d stats, want 1", len(stats))
	}

	s := stats[0]
	if !approx(s.MeanConfidence, 0.85) || s.MinConfidence != 0.80 || s.MaxConfidence != 0.90 {
		t.Errorf("mean/min/max = %v/%v/%v", s.MeanConfidence, s.MinConfidence, s.MaxConfidence)
	}
	if !approx(s.StdDevConfidence, 0.05) {
		t.Errorf("stddev = %v, want 0.05 (population)", s.StdDevConfidence)
	}
	if !approx(s.MeanProcessingMs, 150) {
		t.Errorf("mean time = %v, want 150", s.MeanProcessingMs)
	}
	if s.Samples != 2 || s.Model.ID != "A" || s.Prediction != models.Malignant || s.Model.Params.Millions != 25.6 {
		t.Errorf("static fields not carried: %+v", s)
	}
}

func TestAggregate_FirstSeenOrderAndInvariants(t *testing.T) {
	run := &models.BatchRun{Entries: []models.ImageEntry{
		{Index: 1, Results: []models.InvocationResult{result(modelB, 0.77, 90), result(modelA, 0.91, 100)}},
		{Index: 2, Results: []models.InvocationResult{result(modelB, 0.77, 95), result(modelA, 0.72, 300)}},
		{Index: 3, Results: []models.InvocationResult{result(modelB, 0.77, 80), result(modelA, 0.99, 120)}},
	}}

	stats, err := Aggregate(run)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if stats[0].Model.ID != "B" || stats[1].Model.ID != "A" {
		t.Fatalf("order = %s, %s", stats[0].Model.ID, stats[1].Model.ID)
	}

	for _, s := range stats {
		if s.MinConfidence > s.MeanConfidence || s.MeanConfidence > s.MaxConfidence {
			t.Errorf("%s: min<=mean<=max violated: %v %v %v", s.Model.ID, s.MinConfidence, s.MeanConfidence, s.MaxConfidence)
		}
	}
	if stats[0].StdDevConfidence != 0 || stats[0].MeanConfidence != 0.77 {
		t.Errorf("identical samples: mean=%v std=%v", stats[0].MeanConfidence, stats[0].StdDevConfidence)
	}
	if stats[1].StdDevConfidence <= 0 {
		t.Errorf("distinct samples should have positive stddev, got %v", stats[1].StdDevConfidence)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	run := &models.BatchRun{Entries: []models.ImageEntry{
		{Index: 1, Results: []models.InvocationResult{result(modelA, 0.81, 100)}},
		{Index: 2, Results: []models.InvocationResult{result(modelA, 0.93, 110)}},
	}}
	a, _ := Aggregate(run)
	b, _ := Aggregate(run)
	if a[0] != b[0] {
		t.Errorf("two aggregations differ: %+v vs %+v", a[0], b[0])
	}
}

func TestAggregate_InconsistentPanel(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.ImageEntry
	}{
		{
			name: "model missing from one image",
			entries: []models.ImageEntry{
				{Index: 1, Results: []models.InvocationResult{result(modelA, 0.8, 1), result(modelB, 0.8, 1)}},
				{Index: 2, Results: []models.InvocationResult{result(modelA, 0.8, 1)}},
			},
		},
		{
			name: "model repeated within one image",
			entries: []models.ImageEntry{
				{Index: 1, Results: []models.InvocationResult{result(modelA, 0.8, 1), result(modelA, 0.8, 1)}},
				{Index: 2, Results: []models.InvocationResult{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := Aggregate(&models.BatchRun{Entries: tt.entries})
			if stats != nil {
				t.Errorf("expected no stats, got %d", len(stats))
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeInconsistentPanel) {
				t.Errorf("expected inconsistent_panel error, got %v", err)
			}
		})
	}
}

func TestAggregate_FailedImagesDoNotCount(t *testing.T) {
	run := &models.BatchRun{
		TotalImages: 3,
		Entries: []models.ImageEntry{
			{Index: 1, Results: []models.InvocationResult{result(modelA, 0.8, 1)}},
			{Index: 3, Results: []models.InvocationResult{result(modelA, 0.9, 1)}},
		},
		Failures: []models.ImageFailure{{Index: 2, Error: "bad image"}},
	}
	stats, err := Aggregate(run)
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if stats[0].Samples != 2 {
		t.Errorf("samples = %d, want 2", stats[0].Samples)
	}
}

func TestAggregate_PartialRunRefused(t *testing.T) {
	run := &models.BatchRun{Partial: true, Entries: []models.ImageEntry{
		{Index: 1, Results: []models.InvocationResult{result(modelA, 0.8, 1)}},
	}}
	if _, err := Aggregate(run); !errors.Is(err, ErrPartialBatch) {
		t.Errorf("expected ErrPartialBatch, got %v", err)
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats, err := Aggregate(&models.BatchRun{})
	if err != nil || len(stats) != 0 {
		t.Errorf("empty run: stats=%v err=%v", stats, err)
	}
	if stats, err := Aggregate(nil); err != nil || stats != nil {
		t.Errorf("nil run: stats=%v err=%v", stats, err)
	}
}
