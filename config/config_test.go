package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_BASE_URL", "HISTORY_PAGE_SIZE", "MAX_UPLOAD_MB", "SEARCH_DEBOUNCE", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:5000" {
		t.Errorf("Expected default API base URL, got %s", cfg.APIBaseURL)
	}
	if cfg.HistoryPageSize != 15 {
		t.Errorf("Expected history page size 15, got %d", cfg.HistoryPageSize)
	}
	if cfg.MaxUploadBytes() != 16*1024*1024 {
		t.Errorf("Expected 16MB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if cfg.SearchDebounce != 300*time.Millisecond {
		t.Errorf("Expected 300ms debounce, got %v", cfg.SearchDebounce)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("Expected wildcard origin, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://inference:5000/")
	t.Setenv("HISTORY_PAGE_SIZE", "25")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	if cfg.APIBaseURL != "http://inference:5000" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.HistoryPageSize != 25 {
		t.Errorf("Expected 25, got %d", cfg.HistoryPageSize)
	}
	if cfg.APITimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %v", cfg.APITimeout)
	}
	expected := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, expected) {
		t.Errorf("Expected %v, got %v", expected, cfg.AllowedOrigins)
	}
}

func TestGetIntEnv_InvalidValues(t *testing.T) {
	testCases := []struct {
		name     string
		envValue string
		expected int
	}{
		{name: "Not a number", envValue: "abc", expected: 7},
		{name: "Zero", envValue: "0", expected: 7},
		{name: "Negative", envValue: "-3", expected: 7},
		{name: "Valid", envValue: "12", expected: 12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VALUE", tc.envValue)
			if got := getIntEnv("TEST_INT_VALUE", 7); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}
