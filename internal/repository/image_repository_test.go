package repository

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/storage"
	"go-xray-inspector/pkg/validation"
)

type stubFetcher struct {
	img  image.Image
	err  error
	refs []string
}

func (s *stubFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	s.refs = append(s.refs, ref)
	return s.img, s.err
}

func gray(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.SetGray(0, 0, color.Gray{Y: 200})
	return img
}

func TestFetchRaw_DispatchesOnScheme(t *testing.T) {
	httpF := &stubFetcher{img: gray(3, 2)}
	blobF := &stubFetcher{img: gray(4, 4)}
	fileF := &stubFetcher{img: gray(1, 1)}

	validator := validation.NewRefValidatorWithOptions(
		[]string{validation.SchemeHTTP, validation.SchemeHTTPS, validation.SchemeBlob, validation.SchemeFile}, nil)
	repo := NewImageRepository(Sources{HTTP: httpF, Blob: blobF, Files: fileF}, validator, time.Second)

	tests := []struct {
		ref     string
		fetcher *stubFetcher
		width   int
	}{
		{"https://example.com/a.png", httpF, 3},
		{"azblob://xrays/a.png", blobF, 4},
		{"/data/a.png", fileF, 1},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			raw, err := repo.FetchRaw(context.Background(), tt.ref)
			if err != nil {
				t.Fatalf("FetchRaw returned error: %v", err)
			}
			if raw.Width != tt.width || raw.Channels != 4 {
				t.Errorf("raw = %dx%d/%d", raw.Width, raw.Height, raw.Channels)
			}
			if len(tt.fetcher.refs) == 0 || tt.fetcher.refs[len(tt.fetcher.refs)-1] != tt.ref {
				t.Errorf("reference not routed to the expected fetcher")
			}
		})
	}

	if raw, _ := repo.FetchRaw(context.Background(), "https://example.com/a.png"); raw.Pix[0] != 200 || raw.Pix[3] != 255 {
		t.Errorf("pixel not converted: %v", raw.Pix[:4])
	}
}

func TestFetchRaw_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sources Sources
		ref     string
		want    apperrors.ErrorType
	}{
		{"invalid reference", Sources{HTTP: &stubFetcher{}}, "ftp://x/y", apperrors.ErrorTypeValidation},
		{"unconfigured blob source", Sources{}, "azblob://c/b.png", apperrors.ErrorTypeValidation},
		{"not found", Sources{HTTP: &stubFetcher{err: fmt.Errorf("%w: x", storage.ErrNotFound)}}, "https://e.com/x", apperrors.ErrorTypeNotFound},
		{"undecodable", Sources{HTTP: &stubFetcher{err: fmt.Errorf("%w: bad", storage.ErrUndecodable)}}, "https://e.com/x", apperrors.ErrorTypeInvalidImage},
		{"timeout", Sources{HTTP: &stubFetcher{err: context.DeadlineExceeded}}, "https://e.com/x", apperrors.ErrorTypeTimeout},
		{"network", Sources{HTTP: &stubFetcher{err: errors.New("connection refused")}}, "https://e.com/x", apperrors.ErrorTypeNetwork},
		{"empty image", Sources{HTTP: &stubFetcher{img: image.NewGray(image.Rect(0, 0, 0, 0))}}, "https://e.com/x", apperrors.ErrorTypeInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewImageRepository(tt.sources, nil, 0)
			_, err := repo.FetchRaw(context.Background(), tt.ref)
			if !apperrors.IsType(err, tt.want) {
				t.Errorf("expected %s error, got %v", tt.want, err)
			}
		})
	}
}

func TestFetchRaw_NotFoundKeepsSentinel(t *testing.T) {
	repo := NewImageRepository(Sources{HTTP: &stubFetcher{err: storage.ErrNotFound}}, nil, 0)
	_, err := repo.FetchRaw(context.Background(), "https://e.com/x")
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound in chain, got %v", err)
	}
}
