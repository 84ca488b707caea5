package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/normalizer"
	"go-xray-inspector/internal/observer"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/pkg/models"
)

// ProgressFunc receives (imagesCompleted, totalImages) after every image,
// whether it succeeded or was skipped.
type ProgressFunc func(completed, total int)

// Coordinator drives images through normalization and the model panel
type Coordinator interface {
	// RunBatch processes images in submission order. A canceled context
	// yields the partial run together with a canceled error.
	RunBatch(ctx context.Context, images []models.RawImage, panel []models.ModelDescriptor) (*models.BatchRun, error)
	// RunSingle is the one-image case without batch bookkeeping.
	RunSingle(ctx context.Context, raw models.RawImage, panel []models.ModelDescriptor) (*models.SingleRun, error)
}

// Options configures a coordinator
type Options struct {
	// Workers > 1 normalizes images ahead of the panel on a worker pool.
	// Panel invocation always stays sequential.
	Workers   int
	Progress  ProgressFunc
	Publisher observer.Subject
	// Screen rejects an input before normalization. A rejected image is
	// skipped like any other invalid image.
	Screen func(models.RawImage) error
}

// DefaultOptions returns sequential processing without observers
func DefaultOptions() Options {
	return Options{Workers: 1}
}

// WithWorkers sets the normalization parallelism
func (opts Options) WithWorkers(n int) Options {
	opts.Workers = n
	return opts
}

// WithProgress sets the progress callback
func (opts Options) WithProgress(fn ProgressFunc) Options {
	opts.Progress = fn
	return opts
}

// WithPublisher sets the event publisher
func (opts Options) WithPublisher(p observer.Subject) Options {
	opts.Publisher = p
	return opts
}

// WithScreen sets the input check run before normalization
func (opts Options) WithScreen(fn func(models.RawImage) error) Options {
	opts.Screen = fn
	return opts
}

type coordinator struct {
	normalizer normalizer.Normalizer
	adapter    *panel.Adapter
	opts       Options
}

// NewCoordinator creates a coordinator
func NewCoordinator(n normalizer.Normalizer, adapter *panel.Adapter, opts Options) Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Screen != nil {
		n = screened{Normalizer: n, screen: opts.Screen}
	}
	return &coordinator{normalizer: n, adapter: adapter, opts: opts}
}

type screened struct {
	normalizer.Normalizer
	screen func(models.RawImage) error
}

func (s screened) Normalize(raw models.RawImage) (*models.NormalizedImage, error) {
	if err := s.screen(raw); err != nil {
		return nil, err
	}
	return s.Normalizer.Normalize(raw)
}

func (s screened) NormalizeWithReport(raw models.RawImage) (*models.NormalizedImage, models.NormalizationReport, error) {
	if err := s.screen(raw); err != nil {
		return nil, models.NormalizationReport{}, err
	}
	return s.Normalizer.NormalizeWithReport(raw)
}

type normalized struct {
	img   *models.NormalizedImage
	err   error
	ready chan struct{}
}

func (c *coordinator) RunBatch(ctx context.Context, images []models.RawImage, descriptors []models.ModelDescriptor) (*models.BatchRun, error) {
	if len(descriptors) == 0 {
		return nil, apperrors.NewValidationError("panel has no models", nil)
	}

	run := &models.BatchRun{
		ID:          uuid.NewString(),
		TotalImages: len(images),
		Entries:     make([]models.ImageEntry, 0, len(images)),
		StartedAt:   time.Now(),
	}
	c.publish(ctx, observer.PipelineEvent{EventType: observer.BatchStarted, RunID: run.ID, Total: run.TotalImages})

	var slots []*normalized
	if c.opts.Workers > 1 && len(images) > 1 {
		slots = c.prefetch(ctx, images)
	}

	for i := range images {
		index := i + 1
		if ctx.Err() != nil {
			run.Partial = true
			break
		}
		imageStart := time.Now()

		var img *models.NormalizedImage
		var normErr error
		if slots != nil {
			select {
			case <-slots[i].ready:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				run.Partial = true
				break
			}
			img, normErr = slots[i].img, slots[i].err
		} else {
			img, normErr = c.normalizer.Normalize(images[i])
		}

		if normErr != nil {
			c.recordFailure(ctx, run, index, normErr)
			continue
		}

		results, err := c.adapter.InvokePanel(ctx, img, descriptors)
		if err != nil {
			if ctx.Err() != nil {
				// The in-flight image is dropped, never half published.
				run.Partial = true
				break
			}
			c.recordFailure(ctx, run, index, err)
			continue
		}

		run.Entries = append(run.Entries, models.ImageEntry{Index: index, Results: results})
		c.publish(ctx, observer.PipelineEvent{
			EventType:      observer.ImageCompleted,
			RunID:          run.ID,
			ImageIndex:     index,
			Completed:      run.Completed(),
			Total:          run.TotalImages,
			ProcessingTime: time.Since(imageStart),
		})
		c.progress(run)
	}

	run.FinishedAt = time.Now()
	final := observer.PipelineEvent{
		RunID:          run.ID,
		Completed:      run.Completed(),
		Total:          run.TotalImages,
		ProcessingTime: run.FinishedAt.Sub(run.StartedAt),
	}

	if run.Partial {
		final.EventType = observer.BatchCanceled
		final.ErrorMessage = ctx.Err().Error()
		c.publish(context.WithoutCancel(ctx), final)
		return run, apperrors.NewCanceledError(
			fmt.Sprintf("batch canceled after %d of %d images", run.Completed(), run.TotalImages), ctx.Err())
	}

	final.EventType = observer.BatchCompleted
	c.publish(ctx, final)
	return run, nil
}

// prefetch normalizes images on a worker pool ahead of the sequential
// panel loop. Each slot's ready channel closes once its image is done.
func (c *coordinator) prefetch(ctx context.Context, images []models.RawImage) []*normalized {
	slots := make([]*normalized, len(images))
	for i := range slots {
		slots[i] = &normalized{ready: make(chan struct{})}
	}

	pool := NewWorkerPool(c.opts.Workers)
	pool.Start()
	go func() {
		defer pool.Close()
		for i := range images {
			slot, raw := slots[i], images[i]
			pool.Submit(func() {
				defer close(slot.ready)
				if ctx.Err() != nil {
					slot.err = ctx.Err()
					return
				}
				slot.img, slot.err = c.normalizer.Normalize(raw)
			})
		}
	}()
	return slots
}

func (c *coordinator) recordFailure(ctx context.Context, run *models.BatchRun, index int, err error) {
	run.Failures = append(run.Failures, models.ImageFailure{Index: index, Error: err.Error(), Err: err})

	logger.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"image_index": index,
	}).WithError(err).Warn("Image skipped")

	c.publish(ctx, observer.PipelineEvent{
		EventType:    observer.ImageFailed,
		RunID:        run.ID,
		ImageIndex:   index,
		Completed:    run.Completed(),
		Total:        run.TotalImages,
		ErrorMessage: err.Error(),
	})
	c.progress(run)
}

func (c *coordinator) progress(run *models.BatchRun) {
	if c.opts.Progress != nil {
		c.opts.Progress(run.Completed(), run.TotalImages)
	}
}

func (c *coordinator) publish(ctx context.Context, event observer.PipelineEvent) {
	if c.opts.Publisher != nil {
		c.opts.Publisher.NotifyObservers(ctx, event)
	}
}

func (c *coordinator) RunSingle(ctx context.Context, raw models.RawImage, descriptors []models.ModelDescriptor) (*models.SingleRun, error) {
	if len(descriptors) == 0 {
		return nil, apperrors.NewValidationError("panel has no models", nil)
	}

	runID := uuid.NewString()
	start := time.Now()
	c.publish(ctx, observer.PipelineEvent{EventType: observer.BatchStarted, RunID: runID, Total: 1})

	img, report, err := c.normalizer.NormalizeWithReport(raw)
	if err != nil {
		c.publish(ctx, observer.PipelineEvent{EventType: observer.ImageFailed, RunID: runID, ImageIndex: 1, Completed: 1, Total: 1, ErrorMessage: err.Error()})
		return nil, err
	}

	results, err := c.adapter.InvokePanel(ctx, img, descriptors)
	if err != nil {
		if ctx.Err() != nil {
			c.publish(context.WithoutCancel(ctx), observer.PipelineEvent{EventType: observer.BatchCanceled, RunID: runID, Total: 1, ErrorMessage: ctx.Err().Error()})
			return nil, apperrors.NewCanceledError("analysis canceled", ctx.Err())
		}
		c.publish(ctx, observer.PipelineEvent{EventType: observer.ImageFailed, RunID: runID, ImageIndex: 1, Completed: 1, Total: 1, ErrorMessage: err.Error()})
		return nil, err
	}

	c.publish(ctx, observer.PipelineEvent{EventType: observer.ImageCompleted, RunID: runID, ImageIndex: 1, Completed: 1, Total: 1})
	c.publish(ctx, observer.PipelineEvent{EventType: observer.BatchCompleted, RunID: runID, Completed: 1, Total: 1, ProcessingTime: time.Since(start)})
	if c.opts.Progress != nil {
		c.opts.Progress(1, 1)
	}

	return &models.SingleRun{Normalized: img, Normalization: report, Results: results}, nil
}
