package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/logger"
	"go-xray-inspector/pkg/models"
)

// RetryingOracle retries transient oracle failures with linear backoff.
// Errors exposing Temporary() == false, malformed results and cancellation of
// the caller's context are final.
type RetryingOracle struct {
	inner    Oracle
	attempts int
	backoff  time.Duration
}

// NewRetryingOracle wraps inner. attempts counts the first call.
func NewRetryingOracle(inner Oracle, attempts int, backoff time.Duration) *RetryingOracle {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingOracle{inner: inner, attempts: attempts, backoff: backoff}
}

func (r *RetryingOracle) Invoke(ctx context.Context, img *models.NormalizedImage, model models.ModelDescriptor) (models.Prediction, error) {
	var lastErr error

	for attempt := 0; attempt < r.attempts; attempt++ {
		pred, err := r.inner.Invoke(ctx, img, model)
		if err == nil {
			return pred, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == r.attempts-1 {
			break
		}

		wait := time.Duration(attempt+1) * r.backoff
		logger.WithFields(logrus.Fields{
			"model":   model.ID,
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
		}).WithError(err).Warn("Oracle call failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Prediction{}, ctx.Err()
		case <-timer.C:
		}
	}

	return models.Prediction{}, fmt.Errorf("model %s failed after %d attempts: %w", model.ID, r.attempts, lastErr)
}

func retryable(err error) bool {
	var malformed *MalformedResultError
	if errors.As(err, &malformed) {
		return false
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}
