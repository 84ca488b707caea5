package container

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/batch"
	"go-xray-inspector/internal/config"
	"go-xray-inspector/internal/factory"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/normalizer"
	"go-xray-inspector/internal/observer"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/internal/repository"
	"go-xray-inspector/internal/service"
	"go-xray-inspector/internal/transport"
	"go-xray-inspector/pkg/models"
	"go-xray-inspector/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	publisher       observer.Subject
	metrics         *observer.MetricsObserver
	imageRepository repository.ImageRepository
	analysisService service.AnalysisService
	handler         http.Handler
	release         func()
}

// Option adjusts the container before the dependency graph is built
type Option func(*settings)

type settings struct {
	observers []observer.Observer
	service   service.Options
	oracle    panel.Oracle
	batchSet  string
}

// WithObserver subscribes an extra observer to pipeline events
func WithObserver(o observer.Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// WithServiceOptions overrides the report view sizes
func WithServiceOptions(opts service.Options) Option {
	return func(s *settings) { s.service = opts }
}

// WithOracle replaces the configured oracle
func WithOracle(o panel.Oracle) Option {
	return func(s *settings) { s.oracle = o }
}

// WithBatchSet selects which panel set batch runs use, "batch" by default
func WithBatchSet(set string) Option {
	return func(s *settings) { s.batchSet = set }
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, options ...Option) (*Container, error) {
	s := settings{service: service.DefaultOptions()}
	for _, opt := range options {
		opt(&s)
	}

	f := factory.NewComponentFactory(cfg)

	panels, err := loadPanels(cfg.PanelFile)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(s.batchSet)) {
	case "", panel.SetBatch:
	case panel.SetFull:
		panels.Batch = panels.Full
	default:
		return nil, fmt.Errorf("unknown panel set %q", s.batchSet)
	}

	release := func() {}
	oracle := s.oracle
	if oracle == nil {
		oracle, release, err = f.Oracle()
		if err != nil {
			return nil, fmt.Errorf("failed to create oracle: %w", err)
		}
	}

	normOpts, err := f.NormalizerOptions()
	if err != nil {
		release()
		return nil, err
	}

	sources, refValidator, err := f.Sources()
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create image sources: %w", err)
	}

	// Build dependency graph
	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)
	for _, o := range s.observers {
		publisher.Subscribe(o)
	}

	quality := validation.NewQualityValidator()
	coordinator := batch.NewCoordinator(
		normalizer.NewNormalizer(normOpts),
		panel.NewAdapter(oracle),
		batch.DefaultOptions().
			WithWorkers(cfg.BatchWorkers).
			WithPublisher(publisher).
			WithScreen(func(raw models.RawImage) error {
				_, err := quality.ValidateRaw(raw)
				return err
			}),
	)

	imageRepository := repository.NewImageRepository(sources, refValidator, cfg.ImageFetchTimeout)
	analysisService := service.NewAnalysisService(coordinator, imageRepository, quality, publisher, panels, s.service)
	handler := transport.NewHandler(analysisService, metrics, cfg)

	logger.WithFields(logrus.Fields{
		"oracle":      cfg.Oracle,
		"full_panel":  len(panels.Full),
		"batch_panel": len(panels.Batch),
		"workers":     cfg.BatchWorkers,
		"resample":    normOpts.Resample,
		"blob_source": sources.Blob != nil,
		"file_source": sources.Files != nil,
	}).Info("Container initialized")

	return &Container{
		config:          cfg,
		publisher:       publisher,
		metrics:         metrics,
		imageRepository: imageRepository,
		analysisService: analysisService,
		handler:         handler,
		release:         release,
	}, nil
}

// loadPanels reads PANEL_FILE when set and falls back to the built-in panels
func loadPanels(path string) (service.Panels, error) {
	if path == "" {
		return service.Panels{Full: panel.DefaultPanel(), Batch: panel.BatchPanel()}, nil
	}
	full, batchSet, err := panel.LoadSets(path)
	if err != nil {
		return service.Panels{}, fmt.Errorf("failed to load panel file: %w", err)
	}
	return service.Panels{Full: full, Batch: batchSet}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the analysis service
func (c *Container) Service() service.AnalysisService {
	return c.analysisService
}

// Repository returns the image repository
func (c *Container) Repository() repository.ImageRepository {
	return c.imageRepository
}

// Metrics returns the pipeline counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases native resources held by the oracle
func (c *Container) Close() {
	c.release()
}
