package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Polygon.RateLimitPerMinute != 5 {
		t.Errorf("Expected Polygon rate limit 5/min, got %d", cfg.Polygon.RateLimitPerMinute)
	}

	if cfg.Database.Enabled() {
		t.Errorf("Expected database to be disabled without DATABASE_URL")
	}

	if cfg.Index.ProxyRatio != 10.028 {
		t.Errorf("Expected proxy ratio 10.028, got %v", cfg.Index.ProxyRatio)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("LEDGER_PATH", "/tmp/ledger.json")
	t.Setenv("POLYGON_RATE_LIMIT_PER_MIN", "100")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Ledger.Path != "/tmp/ledger.json" {
		t.Errorf("Expected ledger path override, got %s", cfg.Ledger.Path)
	}

	if cfg.Polygon.RateLimitPerMinute != 100 {
		t.Errorf("Expected Polygon rate limit 100, got %d", cfg.Polygon.RateLimitPerMinute)
	}

	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("Expected HTTP timeout 5s, got %v", cfg.HTTPTimeout)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel to be debug, got %s", cfg.LogLevel)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	t.Setenv("ENV", "invalid")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateRateLimit(t *testing.T) {
	t.Setenv("UW_RATE_LIMIT_PER_MIN", "0")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when rate limit is zero, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")

	if v := getEnvAsFloat("TEST_FLOAT", 1); v != 0.25 {
		t.Errorf("Expected 0.25, got %v", v)
	}

	t.Setenv("TEST_FLOAT", "abc")
	if v := getEnvAsFloat("TEST_FLOAT", 1); v != 1 {
		t.Errorf("Expected fallback 1, got %v", v)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")

	value := getEnvAsBool("TEST_BOOL", false)
	if value != true {
		t.Errorf("Expected value to be true, got %v", value)
	}
}
