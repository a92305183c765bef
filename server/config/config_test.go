package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Detection.Threshold != 25.0 {
		t.Errorf("threshold = %v, want 25.0", cfg.Detection.Threshold)
	}
	if cfg.Detection.MinAreaFraction != 0.01 {
		t.Errorf("min area fraction = %v, want 0.01", cfg.Detection.MinAreaFraction)
	}
	if cfg.Detection.BlurKernelSize != 5 {
		t.Errorf("blur kernel size = %d, want 5", cfg.Detection.BlurKernelSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DETECTION_THRESHOLD", "40.5")
	t.Setenv("PROCESSOR_TIMEOUT", "45s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Detection.Threshold != 40.5 {
		t.Errorf("threshold = %v, want 40.5", cfg.Detection.Threshold)
	}
	if cfg.Processor.ProcessingTimeout != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.Processor.ProcessingTimeout)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v, want two entries", cfg.Security.AllowedOrigins)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("PROCESSOR_TIMEOUT", "soon")

	cfg := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want the 8080 default", cfg.Server.Port)
	}
	if cfg.Processor.ProcessingTimeout != 30*time.Second {
		t.Errorf("timeout = %v, want the 30s default", cfg.Processor.ProcessingTimeout)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Load()
	cfg.Server.Port = 0
	cfg.Detection.Threshold = 500
	cfg.Video.FrameRate = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	for _, fragment := range []string{"port", "threshold", "frame rate"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}
