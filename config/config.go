package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the CropGuard web frontend
type Config struct {
	// Server configuration
	Port string
	Host string

	// Inference API configuration
	APIBaseURL string
	APITimeout time.Duration

	// Upload configuration
	MaxUploadMB int

	// History configuration
	HistoryPageSize int
	SearchDebounce  time.Duration

	// Session configuration
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// CORS
	AllowedOrigins []string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://127.0.0.1:5000"), "/"),
		APITimeout: getDurationEnv("API_TIMEOUT", 30*time.Second),

		MaxUploadMB: getIntEnv("MAX_UPLOAD_MB", 16),

		HistoryPageSize: getIntEnv("HISTORY_PAGE_SIZE", 15),
		SearchDebounce:  getDurationEnv("SEARCH_DEBOUNCE", 300*time.Millisecond),

		SessionTTL:           getDurationEnv("SESSION_TTL", 2*time.Hour),
		SessionSweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),

		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", "*"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets a positive integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

// getStringSliceEnv gets a comma-separated environment variable as a slice
func getStringSliceEnv(key, defaultValue string) []string {
	var values []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
