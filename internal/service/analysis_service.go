package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/aggregate"
	"go-xray-inspector/internal/batch"
	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/observer"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/internal/performance"
	"go-xray-inspector/internal/ranking"
	"go-xray-inspector/internal/repository"
	"go-xray-inspector/pkg/models"
	"go-xray-inspector/pkg/validation"
)

// AnalysisService runs images through the model panel and builds reports
type AnalysisService interface {
	// Panel returns the descriptors of the "full" or "batch" panel
	Panel(set string) ([]models.ModelDescriptor, error)
	// Model looks up a descriptor by id in either panel. When it is not
	// found the closest id is returned as a suggestion.
	Model(id string) (models.ModelDescriptor, string, error)

	AnalyzeSingle(ctx context.Context, raw models.RawImage) (*models.SingleReport, error)
	// AnalyzeBatch returns the partial report together with a canceled
	// error when ctx ends before every image has an outcome.
	AnalyzeBatch(ctx context.Context, raws []models.RawImage) (*models.BatchReport, error)

	AnalyzeSingleRef(ctx context.Context, ref string) (*models.SingleReport, error)
	// AnalyzeBatchRefs fetches every reference first. References that
	// cannot be fetched are reported as failures at their position.
	AnalyzeBatchRefs(ctx context.Context, refs []string) (*models.BatchReport, error)
}

// Panels holds the two configured model sets
type Panels struct {
	Full  []models.ModelDescriptor
	Batch []models.ModelDescriptor
}

// Options sizes the derived views of a report
type Options struct {
	TopN    int
	Fastest int
	// IncludeImage embeds the normalized image as a PNG data URL in
	// single-image reports.
	IncludeImage bool
}

// DefaultOptions returns the view sizes shown by the dashboard
func DefaultOptions() Options {
	return Options{TopN: ranking.DefaultTopN, Fastest: ranking.DefaultFastest, IncludeImage: true}
}

type analysisService struct {
	coordinator batch.Coordinator
	repo        repository.ImageRepository
	quality     *validation.QualityValidator
	publisher   observer.Subject
	panels      Panels
	opts        Options
}

// NewAnalysisService creates a new analysis service. repo, quality and
// publisher may be nil.
func NewAnalysisService(
	coordinator batch.Coordinator,
	repo repository.ImageRepository,
	quality *validation.QualityValidator,
	publisher observer.Subject,
	panels Panels,
	opts Options,
) AnalysisService {
	return &analysisService{
		coordinator: coordinator,
		repo:        repo,
		quality:     quality,
		publisher:   publisher,
		panels:      panels,
		opts:        opts,
	}
}

func (s *analysisService) Panel(set string) ([]models.ModelDescriptor, error) {
	var src []models.ModelDescriptor
	switch strings.ToLower(strings.TrimSpace(set)) {
	case "", panel.SetFull:
		src = s.panels.Full
	case panel.SetBatch:
		src = s.panels.Batch
	default:
		return nil, apperrors.NewValidationError("unknown panel set", nil).WithDetails(set)
	}
	out := make([]models.ModelDescriptor, len(src))
	copy(out, src)
	return out, nil
}

func (s *analysisService) Model(id string) (models.ModelDescriptor, string, error) {
	if d, ok := panel.Lookup(s.panels.Full, id); ok {
		return d, "", nil
	}
	if d, ok := panel.Lookup(s.panels.Batch, id); ok {
		return d, "", nil
	}
	all := append(append([]models.ModelDescriptor{}, s.panels.Full...), s.panels.Batch...)
	return models.ModelDescriptor{}, panel.Suggest(all, id),
		apperrors.NewNotFoundError(fmt.Sprintf("model %q not found", id), nil)
}

func (s *analysisService) AnalyzeSingle(ctx context.Context, raw models.RawImage) (*models.SingleReport, error) {
	start := time.Now()

	var warnings []string
	if s.quality != nil {
		issues, err := s.quality.ValidateRaw(raw)
		if err != nil {
			return nil, err
		}
		warnings = s.quality.ConvertIssuesToMessages(issues)
	}

	run, err := s.coordinator.RunSingle(ctx, raw, s.panels.Full)
	if err != nil {
		return nil, err
	}

	report := &models.SingleReport{
		Timestamp:     start.UTC().Format(time.RFC3339),
		Normalization: run.Normalization,
		Results:       run.Results,
		Insights:      buildInsights(run.Results, s.opts),
		Warnings:      warnings,
	}
	if s.opts.IncludeImage && run.Normalized != nil {
		dataURL, err := run.Normalized.DataURL()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode normalized image", err)
		}
		report.NormalizedImage = dataURL
	}
	report.ProcessingTimeSec = time.Since(start).Seconds()
	return report, nil
}

func (s *analysisService) AnalyzeBatch(ctx context.Context, raws []models.RawImage) (*models.BatchReport, error) {
	if len(raws) == 0 {
		return nil, apperrors.NewValidationError("no images supplied", nil)
	}
	start := time.Now()
	run, runErr := s.coordinator.RunBatch(ctx, raws, s.panels.Batch)
	if run == nil {
		return nil, runErr
	}
	return s.batchReport(start, run, s.batchWarnings(raws, nil), runErr)
}

func (s *analysisService) AnalyzeSingleRef(ctx context.Context, ref string) (*models.SingleReport, error) {
	if s.repo == nil {
		return nil, apperrors.NewValidationError("image references are not supported", nil)
	}
	raw, err := s.repo.FetchRaw(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeSingle(ctx, raw)
}

func (s *analysisService) AnalyzeBatchRefs(ctx context.Context, refs []string) (*models.BatchReport, error) {
	if s.repo == nil {
		return nil, apperrors.NewValidationError("image references are not supported", nil)
	}
	if len(refs) == 0 {
		return nil, apperrors.NewValidationError("no images supplied", nil)
	}
	start := time.Now()

	// positions[i] is the 1-based reference position of the i-th fetched image
	raws := make([]models.RawImage, 0, len(refs))
	positions := make([]int, 0, len(refs))
	var fetchFailures []models.ImageFailure

	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		raw, err := s.repo.FetchRaw(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fetchFailures = append(fetchFailures, models.ImageFailure{Index: i + 1, Error: err.Error(), Err: err})
			logger.WithFields(logrus.Fields{"ref": ref, "image_index": i + 1}).WithError(err).Warn("Image fetch failed")
			s.publish(ctx, observer.PipelineEvent{
				EventType:    observer.ImageFetchFailed,
				ImageIndex:   i + 1,
				Total:        len(refs),
				ErrorMessage: err.Error(),
				Metadata:     map[string]interface{}{"ref": ref},
			})
			continue
		}
		raws = append(raws, raw)
		positions = append(positions, i+1)
		s.publish(ctx, observer.PipelineEvent{
			EventType:  observer.ImageFetched,
			ImageIndex: i + 1,
			Total:      len(refs),
			Metadata:   map[string]interface{}{"ref": ref},
		})
	}

	if ctx.Err() != nil {
		return nil, apperrors.NewCanceledError("batch canceled while fetching images", ctx.Err())
	}

	run, runErr := s.coordinator.RunBatch(ctx, raws, s.panels.Batch)
	if run == nil {
		return nil, runErr
	}

	for i := range run.Entries {
		run.Entries[i].Index = positions[run.Entries[i].Index-1]
	}
	for i := range run.Failures {
		run.Failures[i].Index = positions[run.Failures[i].Index-1]
	}
	run.Failures = append(run.Failures, fetchFailures...)
	sort.SliceStable(run.Failures, func(i, j int) bool { return run.Failures[i].Index < run.Failures[j].Index })
	run.TotalImages = len(refs)

	return s.batchReport(start, run, s.batchWarnings(raws, positions), runErr)
}

func (s *analysisService) batchReport(start time.Time, run *models.BatchRun, warnings []string, runErr error) (*models.BatchReport, error) {
	report := &models.BatchReport{
		Timestamp: start.UTC().Format(time.RFC3339),
		Run:       run,
		Warnings:  warnings,
	}
	for _, f := range run.Failures {
		report.Errors = append(report.Errors, fmt.Sprintf("image %d: %s", f.Index, f.Error))
	}

	if !run.Partial {
		stats, err := aggregate.Aggregate(run)
		if err != nil {
			return nil, err
		}
		report.Aggregated = stats
		report.Insights = buildInsights(stats, s.opts)
	}
	report.ProcessingTimeSec = time.Since(start).Seconds()

	return report, runErr
}

// batchWarnings lists advisory quality issues per image. Rejections are
// left to the coordinator, which records them as failures.
func (s *analysisService) batchWarnings(raws []models.RawImage, positions []int) []string {
	if s.quality == nil {
		return nil
	}
	var warnings []string
	for i, raw := range raws {
		issues, err := s.quality.ValidateRaw(raw)
		if err != nil {
			continue
		}
		index := i + 1
		if positions != nil {
			index = positions[i]
		}
		for _, msg := range s.quality.ConvertIssuesToMessages(issues) {
			warnings = append(warnings, fmt.Sprintf("image %d: %s", index, msg))
		}
	}
	return warnings
}

func (s *analysisService) publish(ctx context.Context, event observer.PipelineEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}

// buildInsights derives every view shown next to the raw results
func buildInsights[T models.Scorer](entries []T, opts Options) models.Insights {
	cm := performance.ConfusionMatrix(entries)
	insights := models.Insights{
		TopModels:              ranking.Scores(ranking.TopN(entries, opts.TopN)),
		Categories:             ranking.Categories(entries),
		CategoryStats:          ranking.CategoryStats(entries),
		ConfusionMatrix:        cm,
		Metrics:                performance.Metrics(cm),
		AccuracyVsParams:       ranking.AccuracyVsParams(entries),
		PredictionDistribution: ranking.PredictionDistribution(entries),
		FastestModels:          ranking.FastestModels(entries, opts.Fastest),
	}
	if best, ok := ranking.BestModel(entries); ok {
		score := best.Score()
		insights.Best = &score
	}
	return insights
}
