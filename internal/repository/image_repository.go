package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/storage"
	"go-xray-inspector/pkg/models"
	"go-xray-inspector/pkg/validation"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchRaw resolves a reference and decodes it into a raw buffer
	FetchRaw(ctx context.Context, ref string) (models.RawImage, error)

	// ValidateRef validates if the provided reference is acceptable
	ValidateRef(ref string) error
}

// Sources groups the fetchers per reference scheme. A nil fetcher marks
// the scheme as unavailable.
type Sources struct {
	HTTP  storage.ImageFetcher
	Blob  storage.ImageFetcher
	Files storage.ImageFetcher
}

type sourceRepository struct {
	sources   Sources
	validator *validation.RefValidator
	timeout   time.Duration
}

// NewImageRepository creates a repository over sources. timeout bounds each
// fetch; zero leaves it to the caller's context.
func NewImageRepository(sources Sources, validator *validation.RefValidator, timeout time.Duration) ImageRepository {
	if validator == nil {
		validator = validation.NewRefValidator()
	}
	return &sourceRepository{sources: sources, validator: validator, timeout: timeout}
}

func (r *sourceRepository) ValidateRef(ref string) error {
	return r.validator.ValidateRef(ref)
}

func (r *sourceRepository) FetchRaw(ctx context.Context, ref string) (models.RawImage, error) {
	if err := r.ValidateRef(ref); err != nil {
		return models.RawImage{}, err
	}

	fetcher, err := r.fetcherFor(validation.Scheme(ref))
	if err != nil {
		return models.RawImage{}, apperrors.NewValidationError("image source not configured", err).WithDetails(ref)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	img, err := fetcher.FetchImage(ctx, ref)
	if err != nil {
		return models.RawImage{}, classify(ref, err)
	}

	raw, err := models.RawImageFromImage(img)
	if err != nil {
		return models.RawImage{}, apperrors.NewInvalidImageError("decoded image is empty", err).WithDetails(ref)
	}

	logger.WithFields(logrus.Fields{
		"ref":         ref,
		"width":       raw.Width,
		"height":      raw.Height,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Image fetched")

	return raw, nil
}

func (r *sourceRepository) fetcherFor(scheme string) (storage.ImageFetcher, error) {
	var f storage.ImageFetcher
	switch scheme {
	case validation.SchemeHTTP, validation.SchemeHTTPS:
		f = r.sources.HTTP
	case validation.SchemeBlob:
		f = r.sources.Blob
	case validation.SchemeFile:
		f = r.sources.Files
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidReference, scheme)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryUnavailable, scheme)
	}
	return f, nil
}

func classify(ref string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timeout", err).WithDetails(ref)
	case errors.Is(err, context.Canceled):
		return apperrors.NewCanceledError("image fetch canceled", err).WithDetails(ref)
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NewNotFoundError("image not found", fmt.Errorf("%w: %v", ErrImageNotFound, err)).WithDetails(ref)
	case errors.Is(err, storage.ErrUndecodable):
		return apperrors.NewInvalidImageError("image could not be decoded", err).WithDetails(ref)
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		return err
	default:
		return apperrors.NewNetworkError("failed to fetch image", err).WithDetails(ref)
	}
}
