// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Detection DetectionConfig
	Processor ProcessorConfig
	Video     VideoConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
}

// DetectionConfig carries the engine option defaults applied when a
// request leaves a field unset.
type DetectionConfig struct {
	Threshold       float64
	MinAreaFraction float64
	BlurKernelSize  int
}

type ProcessorConfig struct {
	MaxQueueSize      int
	MaxWorkers        int
	ProcessingTimeout time.Duration
}

type VideoConfig struct {
	TempDir       string
	FrameRate     int
	MaxUploadSize int64
}

type SecurityConfig struct {
	AuthSecret     string
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
	MaxRequestSize int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from environment variables with sensible
// defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Detection: DetectionConfig{
			Threshold:       getEnvAsFloat("DETECTION_THRESHOLD", 25.0),
			MinAreaFraction: getEnvAsFloat("DETECTION_MIN_AREA_FRACTION", 0.01),
			BlurKernelSize:  getEnvAsInt("DETECTION_BLUR_KERNEL_SIZE", 5),
		},
		Processor: ProcessorConfig{
			MaxQueueSize:      getEnvAsInt("PROCESSOR_QUEUE_SIZE", 100),
			MaxWorkers:        getEnvAsInt("PROCESSOR_WORKERS", 4),
			ProcessingTimeout: getEnvAsDuration("PROCESSOR_TIMEOUT", 30*time.Second),
		},
		Video: VideoConfig{
			TempDir:       getEnv("VIDEO_TEMP_DIR", os.TempDir()),
			FrameRate:     getEnvAsInt("VIDEO_FRAME_RATE", 5),
			MaxUploadSize: getEnvAsInt64("VIDEO_MAX_UPLOAD_SIZE", 100*1024*1024),
		},
		Security: SecurityConfig{
			AuthSecret:     getEnv("AUTH_SECRET", ""),
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, "server port must be between 1 and 65535")
	}
	if c.Detection.Threshold < 1.0 || c.Detection.Threshold > 100.0 {
		problems = append(problems, "detection threshold must be between 1.0 and 100.0")
	}
	if c.Detection.MinAreaFraction < 0.001 || c.Detection.MinAreaFraction > 0.5 {
		problems = append(problems, "detection min area fraction must be between 0.001 and 0.5")
	}
	if c.Detection.BlurKernelSize < 0 {
		problems = append(problems, "blur kernel size must not be negative")
	}
	if c.Processor.MaxWorkers < 1 {
		problems = append(problems, "processor workers must be positive")
	}
	if c.Video.FrameRate < 1 {
		problems = append(problems, "video frame rate must be positive")
	}
	if c.Security.MaxRequestSize <= 0 {
		problems = append(problems, "max request size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
