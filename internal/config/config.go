/**
 * Configuration for the verifier worker.
 *
 * Loads configuration from environment variables. Pipeline thresholds are
 * explicit values handed to pipeline construction; nothing here is
 * process-wide mutable state.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultProcessingTimeoutMs bounds one frame job when PROCESSING_TIMEOUT is
// unset. The queue consumer falls back to the same value when handed a zero
// timeout.
const DefaultProcessingTimeoutMs = 120000

// Config holds worker configuration
type Config struct {
	// Redis configuration (job queue + progress events)
	RedisURL  string
	QueueName string

	// Storage configuration
	StorageDriver string // "bolt" or "postgres"
	DatabaseURL   string // required for the postgres driver
	BoltPath      string
	DataDir       string // reference image files live here

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds per frame job

	// OCR configuration
	TesseractLang string

	// Pipeline thresholds. Defaults are calibration constants shared with
	// the reference deployment; changing them changes scoring compatibility.
	RectifyOutputWidth int
	MatchWidth         int
	BlurThreshold      float64
	GlareThreshold     float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:          getEnvOrDefault("QUEUE_NAME", "verifier:frames"),
		StorageDriver:      getEnvOrDefault("STORAGE_DRIVER", "bolt"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		BoltPath:           getEnvOrDefault("BOLT_PATH", "data/verifier.db"),
		DataDir:            getEnvOrDefault("DATA_DIR", "data"),
		WorkerConcurrency:  getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:  getEnvAsIntOrDefault("PROCESSING_TIMEOUT", DefaultProcessingTimeoutMs),
		TesseractLang:      getEnvOrDefault("TESSERACT_LANG", "eng"),
		RectifyOutputWidth: getEnvAsIntOrDefault("RECTIFY_OUTPUT_WIDTH", 1200),
		MatchWidth:         getEnvAsIntOrDefault("MATCH_WIDTH", 800),
		BlurThreshold:      getEnvAsFloatOrDefault("BLUR_THRESHOLD", 120.0),
		GlareThreshold:     getEnvAsFloatOrDefault("GLARE_THRESHOLD", 0.18),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	switch c.StorageDriver {
	case "bolt":
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be \"bolt\" or \"postgres\", got %q", c.StorageDriver)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.RectifyOutputWidth < 100 {
		return fmt.Errorf("RECTIFY_OUTPUT_WIDTH must be at least 100, got %d", c.RectifyOutputWidth)
	}

	if c.MatchWidth < 100 {
		return fmt.Errorf("MATCH_WIDTH must be at least 100, got %d", c.MatchWidth)
	}

	if c.GlareThreshold <= 0 || c.GlareThreshold > 1 {
		return fmt.Errorf("GLARE_THRESHOLD must be in (0, 1], got %f", c.GlareThreshold)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
