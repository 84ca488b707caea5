package config

import (
	"strings"
	"testing"
	"time"
)

var configEnv = []string{
	"HOST", "PORT", "REQUEST_TIMEOUT", "MAX_REQUEST_BODY_SIZE", "MAX_BATCH_IMAGES", "LOG_LEVEL",
	"PANEL_FILE", "RANDOM_SEED", "SIMULATED_LATENCY", "ORACLE", "ORACLE_URL", "ORACLE_TIMEOUT",
	"ORACLE_RETRIES", "ONNX_MODEL_PATH", "ONNX_METADATA_PATH", "ONNX_LIBRARY_PATH", "RESAMPLE",
	"BATCH_WORKERS", "IMAGE_FETCH_TIMEOUT", "IMAGE_ROOT", "AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("address = %s", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 60*time.Second || cfg.MaxBatchImages != 200 || cfg.MaxRequestBodySize != 64<<20 {
		t.Errorf("unexpected limits %+v", cfg)
	}
	if cfg.Oracle != "simulated" || cfg.OracleRetries != 3 || cfg.Resample != "bilinear" || cfg.BatchWorkers != 1 {
		t.Errorf("unexpected pipeline defaults %+v", cfg)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", " 9090 ")
	t.Setenv("ORACLE", "HTTP")
	t.Setenv("ORACLE_URL", "http://inference:8000")
	t.Setenv("RESAMPLE", "Nearest")
	t.Setenv("BATCH_WORKERS", "4")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("SIMULATED_LATENCY", "5ms")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:9090" {
		t.Errorf("address = %s", cfg.ServerAddress())
	}
	if cfg.Oracle != "http" || cfg.Resample != "nearest" || cfg.BatchWorkers != 4 || cfg.RandomSeed != 42 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SimulatedLatency != 5*time.Millisecond {
		t.Errorf("latency = %s", cfg.SimulatedLatency)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("invalid duration should fall back to the default, got %s", cfg.RequestTimeout)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "http"}, "invalid PORT"},
		{"port out of range", map[string]string{"PORT": "70000"}, "invalid PORT"},
		{"zero batch size", map[string]string{"MAX_BATCH_IMAGES": "0"}, "MAX_BATCH_IMAGES"},
		{"zero workers", map[string]string{"BATCH_WORKERS": "0"}, "BATCH_WORKERS"},
		{"zero retries", map[string]string{"ORACLE_RETRIES": "0"}, "ORACLE_RETRIES"},
		{"unknown kernel", map[string]string{"RESAMPLE": "lanczos"}, "RESAMPLE"},
		{"unknown oracle", map[string]string{"ORACLE": "magic"}, "ORACLE must be"},
		{"http without url", map[string]string{"ORACLE": "http"}, "ORACLE_URL"},
		{"onnx without model", map[string]string{"ORACLE": "onnx", "ONNX_METADATA_PATH": "meta.json"}, "ONNX_MODEL_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
