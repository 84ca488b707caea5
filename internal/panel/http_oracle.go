package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/logger"
	"go-xray-inspector/pkg/models"
)

// StatusError is a non-200 answer from a remote inference service.
// 5xx answers are temporary.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference service returned status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the call may succeed when retried
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type remotePrediction struct {
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Prediction       string  `json:"prediction"`
}

// HTTPOracle posts the normalized image as PNG to a remote inference
// service, one request per model.
type HTTPOracle struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPOracle creates a client for the service at baseURL
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *HTTPOracle) Invoke(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	pngData, err := img.PNG()
	if err != nil {
		return models.Prediction{}, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "normalized.png")
	if err != nil {
		return models.Prediction{}, fmt.Errorf("failed to create image field: %w", err)
	}
	if _, err := part.Write(pngData); err != nil {
		return models.Prediction{}, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("model", model.ID); err != nil {
		return models.Prediction{}, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("category", string(model.Category)); err != nil {
		return models.Prediction{}, fmt.Errorf("failed to write category field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.Prediction{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := o.baseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.WithFields(logrus.Fields{"model": model.ID, "url": url}).Debug("Sending inference request")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Prediction{}, fmt.Errorf("failed to read inference response: %w", err)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode != http.StatusOK {
		return models.Prediction{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var rp remotePrediction
	if err := json.Unmarshal(respBody, &rp); err != nil {
		return models.Prediction{}, &MalformedResultError{ModelID: model.ID, Reason: err.Error()}
	}

	label := model.Prediction
	if rp.Prediction != "" {
		if label, err = models.ParsePredictionLabel(rp.Prediction); err != nil {
			return models.Prediction{}, &MalformedResultError{ModelID: model.ID, Reason: err.Error()}
		}
	}
	if rp.ProcessingTimeMs <= 0 {
		rp.ProcessingTimeMs = elapsed
	}

	return models.Prediction{
		Confidence:       rp.Confidence,
		ProcessingTimeMs: rp.ProcessingTimeMs,
		Label:            label,
	}, nil
}
