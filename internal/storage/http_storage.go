package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/logger"
)

var (
	// ErrNotFound is returned when the referenced object does not exist
	ErrNotFound = errors.New("image not found")
	// ErrUndecodable is returned when the bytes are not a supported image
	ErrUndecodable = errors.New("image could not be decoded")
)

// ImageFetcher retrieves and decodes one image by reference
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (image.Image, error)
}

// HTTPOptions tunes the HTTP fetcher
type HTTPOptions struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	MaxBytes int64
}

// DefaultHTTPOptions returns three attempts with a one second linear backoff
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:  30 * time.Second,
		Attempts: 3,
		Backoff:  time.Second,
		MaxBytes: 64 << 20,
	}
}

// HTTPImageFetcher implements ImageFetcher over HTTP(S)
type HTTPImageFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts HTTPOptions) *HTTPImageFetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultHTTPOptions().MaxBytes
	}

	// Connection pooling sized for a handful of concurrent downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		opts: opts,
	}
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	data, err := h.FetchBytes(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// FetchBytes downloads the body of imageURL. 5xx answers and transport
// errors are retried with linear backoff; 4xx answers are final.
func (h *HTTPImageFetcher) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < h.opts.Attempts; attempt++ {
		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retry || ctx.Err() != nil || attempt == h.opts.Attempts-1 {
			break
		}

		wait := time.Duration(attempt+1) * h.opts.Backoff
		logger.WithFields(logrus.Fields{
			"url":     imageURL,
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
		}).WithError(err).Warn("Image download failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if errors.Is(lastErr, ErrNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.opts.Attempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/gif, */*")
	req.Header.Set("User-Agent", "Go-XRay-Inspector/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, imageURL)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > h.opts.MaxBytes {
		return nil, false, fmt.Errorf("image exceeds %d bytes", h.opts.MaxBytes)
	}
	return data, false, nil
}
