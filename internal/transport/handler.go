package transport

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-xray-inspector/internal/config"
	apperrors "go-xray-inspector/internal/errors"
	"go-xray-inspector/internal/logger"
	"go-xray-inspector/internal/service"
	"go-xray-inspector/internal/storage"
	"go-xray-inspector/pkg/models"
)

// StatsProvider exposes pipeline counters for /stats
type StatsProvider interface {
	GetMetrics() map[string]interface{}
}

func NewHandler(svc service.AnalysisService, stats StatsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/stats", statsHandler(stats))
	r.GET("/panel", panelHandler(svc))
	r.GET("/panel/models/:id", modelHandler(svc))
	r.POST("/analyze", analyzeImage(svc, cfg))
	r.POST("/analyze/batch", analyzeBatch(svc, cfg))
	r.POST("/analyze/refs", analyzeRefs(svc, cfg))

	return r
}

func panelHandler(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := c.DefaultQuery("set", "full")
		descriptors, err := svc.Panel(set)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid panel set", err)
			return
		}
		c.JSON(http.StatusOK, models.PanelResponse{Set: set, Count: len(descriptors), Models: descriptors})
	}
}

func modelHandler(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		d, suggestion, err := svc.Model(id)
		if err != nil {
			resp := models.NotFoundResponse{
				Error:   http.StatusText(http.StatusNotFound),
				Message: fmt.Sprintf("model %q is not in any panel", id),
			}
			if suggestion != "" {
				resp.Suggestion = fmt.Sprintf("did you mean %q?", suggestion)
			}
			c.AbortWithStatusJSON(http.StatusNotFound, resp)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func analyzeImage(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing single image analysis request")

		fh, err := c.FormFile("image")
		if err != nil {
			respondError(c, uploadStatus(err), "missing image upload", err)
			return
		}
		raw, err := decodeUpload(fh)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to decode image", err)
			return
		}

		report, err := svc.AnalyzeSingle(ctx, raw)
		if err != nil {
			respondError(c, statusFor(err), "image analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"filename":           fh.Filename,
			"models":             len(report.Results),
			"warnings":           len(report.Warnings),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Image analysis completed successfully")

		c.JSON(http.StatusOK, report)
	}
}

func analyzeBatch(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing batch analysis request")

		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, uploadStatus(err), "invalid multipart form", err)
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			respondError(c, http.StatusBadRequest, "no images uploaded", apperrors.NewValidationError("field images is empty", nil))
			return
		}
		if len(files) > cfg.MaxBatchImages {
			respondError(c, http.StatusBadRequest, "too many images",
				apperrors.NewValidationError(fmt.Sprintf("batch holds %d images, limit is %d", len(files), cfg.MaxBatchImages), nil))
			return
		}

		raws := make([]models.RawImage, len(files))
		for i, fh := range files {
			raw, err := decodeUpload(fh)
			if err != nil {
				respondError(c, apperrors.GetStatusCode(err), fmt.Sprintf("failed to decode image %d (%s)", i+1, fh.Filename), err)
				return
			}
			raws[i] = raw
		}

		report, err := svc.AnalyzeBatch(ctx, raws)
		if err != nil {
			respondError(c, statusFor(err), "batch analysis failed", err)
			return
		}

		logBatch(report, startTime)
		c.JSON(http.StatusOK, report)
	}
}

func analyzeRefs(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing reference analysis request")

		var req models.RefsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		if len(req.Refs) > cfg.MaxBatchImages {
			respondError(c, http.StatusBadRequest, "too many images",
				apperrors.NewValidationError(fmt.Sprintf("batch holds %d images, limit is %d", len(req.Refs), cfg.MaxBatchImages), nil))
			return
		}

		if len(req.Refs) == 1 {
			report, err := svc.AnalyzeSingleRef(ctx, req.Refs[0])
			if err != nil {
				respondError(c, statusFor(err), "image analysis failed", err)
				return
			}
			c.JSON(http.StatusOK, report)
			return
		}

		report, err := svc.AnalyzeBatchRefs(ctx, req.Refs)
		if err != nil {
			respondError(c, statusFor(err), "batch analysis failed", err)
			return
		}
		logBatch(report, startTime)
		c.JSON(http.StatusOK, report)
	}
}

func statsHandler(stats StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if stats == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, stats.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeUpload(fh *multipart.FileHeader) (models.RawImage, error) {
	f, err := fh.Open()
	if err != nil {
		return models.RawImage{}, apperrors.NewValidationError("cannot read upload", err)
	}
	defer f.Close()

	img, err := storage.DecodeReader(f)
	if err != nil {
		return models.RawImage{}, apperrors.NewInvalidImageError("unsupported or corrupt image", err)
	}
	raw, err := models.RawImageFromImage(img)
	if err != nil {
		return models.RawImage{}, apperrors.NewInvalidImageError("image has no pixels", err)
	}
	return raw, nil
}

func logRequest(c *gin.Context, msg string) {
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info(msg)
}

func logBatch(report *models.BatchReport, startTime time.Time) {
	logger.WithFields(logrus.Fields{
		"run_id":             report.Run.ID,
		"images":             report.Run.TotalImages,
		"processed":          len(report.Run.Entries),
		"failed":             len(report.Run.Failures),
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Batch analysis completed successfully")
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, statusFor(err.Err), "request processing failed", err)
		}
	}
}

// statusClientClosedRequest is the nginx convention for a caller that went away
const statusClientClosedRequest = 499

// statusFor prefers the deadline over the canceled wrapper so that a
// request timeout reads as 504.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func uploadStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(code, resp)
}
