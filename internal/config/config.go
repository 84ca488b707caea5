package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	MaxBatchImages     int
	LogLevel           string

	// Panel and oracle
	PanelFile        string
	RandomSeed       int64
	SimulatedLatency time.Duration
	Oracle           string
	OracleURL        string
	OracleTimeout    time.Duration
	OracleRetries    int
	ONNXModelPath    string
	ONNXMetadataPath string
	ONNXLibraryPath  string

	// Pipeline
	Resample     string
	BatchWorkers int

	// Image sources
	ImageFetchTimeout time.Duration
	ImageRoot         string
	AzureAccountName  string
	AzureAccountKey   string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 64*1024*1024), // 64MB
		MaxBatchImages:     int(parseIntOrDefault("MAX_BATCH_IMAGES", 200)),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		PanelFile:          strings.TrimSpace(os.Getenv("PANEL_FILE")),
		RandomSeed:         parseIntOrDefault("RANDOM_SEED", 0),
		SimulatedLatency:   parseDurationOrDefault("SIMULATED_LATENCY", 0),
		Oracle:             strings.ToLower(getEnvOrDefault("ORACLE", "simulated")),
		OracleURL:          strings.TrimSpace(os.Getenv("ORACLE_URL")),
		OracleTimeout:      parseDurationOrDefault("ORACLE_TIMEOUT", 10*time.Second),
		OracleRetries:      int(parseIntOrDefault("ORACLE_RETRIES", 3)),
		ONNXModelPath:      strings.TrimSpace(os.Getenv("ONNX_MODEL_PATH")),
		ONNXMetadataPath:   strings.TrimSpace(os.Getenv("ONNX_METADATA_PATH")),
		ONNXLibraryPath:    strings.TrimSpace(os.Getenv("ONNX_LIBRARY_PATH")),
		Resample:           strings.ToLower(getEnvOrDefault("RESAMPLE", "bilinear")),
		BatchWorkers:       int(parseIntOrDefault("BATCH_WORKERS", 1)),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		ImageRoot:          strings.TrimSpace(os.Getenv("IMAGE_ROOT")),
		AzureAccountName:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureAccountKey:    strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxBatchImages <= 0 {
		return fmt.Errorf("MAX_BATCH_IMAGES must be > 0 (got %d)", c.MaxBatchImages)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.OracleTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, oracle=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.OracleTimeout)
	}
	if c.SimulatedLatency < 0 {
		return fmt.Errorf("SIMULATED_LATENCY must be >= 0 (got %s)", c.SimulatedLatency)
	}
	if c.OracleRetries < 1 {
		return fmt.Errorf("ORACLE_RETRIES must be >= 1 (got %d)", c.OracleRetries)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be >= 1 (got %d)", c.BatchWorkers)
	}
	switch c.Resample {
	case "bilinear", "nearest":
	default:
		return fmt.Errorf("RESAMPLE must be bilinear or nearest (got %q)", c.Resample)
	}
	switch c.Oracle {
	case "simulated":
	case "http":
		if c.OracleURL == "" {
			return fmt.Errorf("ORACLE_URL is required when ORACLE=http")
		}
	case "onnx":
		if c.ONNXModelPath == "" || c.ONNXMetadataPath == "" {
			return fmt.Errorf("ONNX_MODEL_PATH and ONNX_METADATA_PATH are required when ORACLE=onnx")
		}
	default:
		return fmt.Errorf("ORACLE must be simulated, http or onnx (got %q)", c.Oracle)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration >= 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
