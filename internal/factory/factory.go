package factory

import (
	"fmt"
	"time"

	"go-xray-inspector/internal/config"
	"go-xray-inspector/internal/inference/onnx"
	"go-xray-inspector/internal/normalizer"
	"go-xray-inspector/internal/panel"
	"go-xray-inspector/internal/repository"
	"go-xray-inspector/internal/storage"
	"go-xray-inspector/pkg/validation"
)

// OracleType represents the different model oracles
type OracleType string

const (
	// SimulatedOracle draws confidences around each model's baseline
	SimulatedOracle OracleType = "simulated"
	// HTTPOracle forwards each invocation to an inference service
	HTTPOracle OracleType = "http"
	// ONNXOracle runs a local ONNX model
	ONNXOracle OracleType = "onnx"
)

// oracleBackoff is the base delay between remote oracle attempts
const oracleBackoff = 500 * time.Millisecond

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// OracleFactory creates model oracles. The returned release func frees
// native resources and is never nil.
type OracleFactory interface {
	CreateOracle(oracleType OracleType) (panel.Oracle, func(), error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

type oracleFactory struct {
	cfg *config.Config
}

// NewOracleFactory creates a new oracle factory
func NewOracleFactory(cfg *config.Config) OracleFactory {
	return &oracleFactory{cfg: cfg}
}

// CreateOracle creates an oracle based on the specified type
func (f *oracleFactory) CreateOracle(oracleType OracleType) (panel.Oracle, func(), error) {
	noop := func() {}
	switch oracleType {
	case SimulatedOracle:
		return panel.NewSimulatedOracle(panel.NewRandomSource(f.cfg.RandomSeed), f.cfg.SimulatedLatency), noop, nil
	case HTTPOracle:
		if f.cfg.OracleURL == "" {
			return nil, noop, fmt.Errorf("http oracle needs ORACLE_URL")
		}
		remote := panel.NewHTTPOracle(f.cfg.OracleURL, f.cfg.OracleTimeout)
		return panel.NewRetryingOracle(remote, f.cfg.OracleRetries, oracleBackoff), noop, nil
	case ONNXOracle:
		o, err := onnx.NewOracle(f.cfg.ONNXModelPath, f.cfg.ONNXMetadataPath, f.cfg.ONNXLibraryPath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load onnx model: %w", err)
		}
		return o, o.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported oracle type: %s", oracleType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		opts := storage.DefaultHTTPOptions()
		opts.Timeout = f.cfg.ImageFetchTimeout
		opts.MaxBytes = f.cfg.MaxRequestBodySize
		return storage.NewHTTPImageFetcher(opts), nil
	case AzureStorage:
		if f.cfg.AzureAccountName == "" {
			return nil, fmt.Errorf("azure storage needs AZURE_STORAGE_ACCOUNT")
		}
		return storage.NewAzureStorage(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
	case LocalStorage:
		if f.cfg.ImageRoot == "" {
			return nil, fmt.Errorf("local storage needs IMAGE_ROOT")
		}
		return storage.NewFileImageFetcher(f.cfg.ImageRoot), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	cfg            *config.Config
	OracleFactory  OracleFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		cfg:            cfg,
		OracleFactory:  NewOracleFactory(cfg),
		StorageFactory: NewStorageFactory(cfg),
	}
}

// Oracle creates the oracle selected by ORACLE
func (f *ComponentFactory) Oracle() (panel.Oracle, func(), error) {
	return f.OracleFactory.CreateOracle(OracleType(f.cfg.Oracle))
}

// Sources creates every configured image source. HTTP is always
// available; blob and file sources only when configured.
func (f *ComponentFactory) Sources() (repository.Sources, *validation.RefValidator, error) {
	var sources repository.Sources
	schemes := []string{validation.SchemeHTTP, validation.SchemeHTTPS}

	httpFetcher, err := f.StorageFactory.CreateStorage(HTTPStorage)
	if err != nil {
		return sources, nil, err
	}
	sources.HTTP = httpFetcher

	if f.cfg.AzureAccountName != "" {
		blob, err := f.StorageFactory.CreateStorage(AzureStorage)
		if err != nil {
			return sources, nil, err
		}
		sources.Blob = blob
		schemes = append(schemes, validation.SchemeBlob)
	}

	if f.cfg.ImageRoot != "" {
		files, err := f.StorageFactory.CreateStorage(LocalStorage)
		if err != nil {
			return sources, nil, err
		}
		sources.Files = files
		schemes = append(schemes, validation.SchemeFile)
	}

	return sources, validation.NewRefValidatorWithOptions(schemes, nil), nil
}

// NormalizerOptions maps RESAMPLE onto normalizer options
func (f *ComponentFactory) NormalizerOptions() (normalizer.Options, error) {
	r, err := normalizer.ParseResample(f.cfg.Resample)
	if err != nil {
		return normalizer.Options{}, err
	}
	return normalizer.DefaultOptions().WithResample(r), nil
}
