package repository

import "errors"

var (
	// ErrInvalidReference indicates a reference the repository cannot resolve
	ErrInvalidReference = errors.New("invalid image reference")

	// ErrImageNotFound indicates the image was not found
	ErrImageNotFound = errors.New("image not found")

	// ErrRepositoryUnavailable indicates a source that is not configured
	ErrRepositoryUnavailable = errors.New("image source unavailable")
)
