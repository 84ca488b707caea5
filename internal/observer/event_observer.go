package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineEvent represents one step of a single-image or batch run
type PipelineEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RunID          string                 `json:"run_id"`
	ImageIndex     int                    `json:"image_index,omitempty"`
	Completed      int                    `json:"completed"`
	Total          int                    `json:"total"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// BatchStarted when a run begins
	BatchStarted EventType = "batch_started"
	// ImageCompleted when every model returned for an image
	ImageCompleted EventType = "image_completed"
	// ImageFailed when an image was skipped
	ImageFailed EventType = "image_failed"
	// BatchCompleted when all images have an outcome
	BatchCompleted EventType = "batch_completed"
	// BatchCanceled when the run was aborted and is partial
	BatchCanceled EventType = "batch_canceled"
	// ImageFetched when a referenced image was downloaded
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a referenced image could not be downloaded
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"run_id":             event.RunID,
		"completed":          event.Completed,
		"total":              event.Total,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}
	if event.ImageIndex > 0 {
		fields["image_index"] = event.ImageIndex
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case BatchStarted:
		o.logger.WithFields(fields).Info("Run started")
	case ImageCompleted:
		o.logger.WithFields(fields).Debug("Image processed")
	case ImageFailed:
		o.logger.WithFields(fields).Warn("Image skipped")
	case BatchCompleted:
		o.logger.WithFields(fields).Info("Run completed")
	case BatchCanceled:
		o.logger.WithFields(fields).Warn("Run canceled, results are partial")
	case ImageFetched:
		o.logger.WithFields(fields).Debug("Image fetched successfully")
	case ImageFetchFailed:
		o.logger.WithFields(fields).Error("Image fetch failed")
	default:
		o.logger.WithFields(fields).Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalRuns           int64
	completedRuns       int64
	canceledRuns        int64
	processedImages     int64
	failedImages        int64
	failedFetches       int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case BatchStarted:
		o.totalRuns++
	case ImageCompleted:
		o.processedImages++
	case ImageFailed:
		o.failedImages++
	case BatchCompleted:
		o.completedRuns++
		o.totalProcessingTime += event.ProcessingTime
	case BatchCanceled:
		o.canceledRuns++
	case ImageFetchFailed:
		o.failedFetches++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.completedRuns > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.completedRuns)
	}

	return map[string]interface{}{
		"total_runs":            o.totalRuns,
		"completed_runs":        o.completedRuns,
		"canceled_runs":         o.canceledRuns,
		"processed_images":      o.processedImages,
		"failed_images":         o.failedImages,
		"failed_fetches":        o.failedFetches,
		"total_processing_ms":   o.totalProcessingTime.Milliseconds(),
		"avg_run_processing_ms": avgProcessingTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription
// order before returning, so progress events are seen in emission order.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event PipelineEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// ProgressObserver forwards image outcomes to a callback as
// (completed, total) pairs.
type ProgressObserver struct {
	name string
	fn   func(completed, total int)
}

// NewProgressObserver creates an observer that reports progress to fn
func NewProgressObserver(name string, fn func(completed, total int)) *ProgressObserver {
	return &ProgressObserver{name: name, fn: fn}
}

// OnEvent reports progress for image outcomes
func (o *ProgressObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	switch event.EventType {
	case ImageCompleted, ImageFailed:
		o.fn(event.Completed, event.Total)
	}
}

// GetObserverName returns the observer name
func (o *ProgressObserver) GetObserverName() string {
	return o.name
}
