package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                  "9090",
		"ENVIRONMENT":           "test",
		"BACKEND_URL":           "https://backend.example.com/",
		"BACKEND_TIMEOUT":       "0",
		"PRODUCT_BATCH_LIMIT":   "120",
		"HISTORY_REFRESH_DELAY": "500ms",
		"COOKIE_SECURE":         "false",
		"ALLOWED_ORIGINS":       "https://a.example.com, ,https://b.example.com",
	}

	for key, value := range testCases {
		os.Setenv(key, value)
	}

	// テスト後にクリーンアップ
	defer func() {
		for key := range testCases {
			os.Unsetenv(key)
		}
	}()

	cfg := LoadConfig()

	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}

	if cfg.BackendURL != "https://backend.example.com" {
		t.Errorf("Expected trailing slash to be trimmed, got '%s'", cfg.BackendURL)
	}

	if cfg.BackendTimeout != 0 {
		t.Errorf("Expected BackendTimeout to be disabled, got %v", cfg.BackendTimeout)
	}

	if cfg.ProductBatchLimit != 120 {
		t.Errorf("Expected ProductBatchLimit to be 120, got %d", cfg.ProductBatchLimit)
	}

	if cfg.HistoryRefreshDelay != 500*time.Millisecond {
		t.Errorf("Expected HistoryRefreshDelay to be 500ms, got %v", cfg.HistoryRefreshDelay)
	}

	if cfg.CookieSecure {
		t.Errorf("Expected CookieSecure to be false")
	}

	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("Unexpected AllowedOrigins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "BACKEND_URL", "BACKEND_TIMEOUT",
		"PRODUCT_BATCH_LIMIT", "HISTORY_REFRESH_DELAY", "COOKIE_SECURE",
		"FRAME_ANCESTORS", "ALLOWED_ORIGINS",
	}

	for _, v := range vars {
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	// デフォルト値の検証
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}

	if cfg.BackendTimeout != 60*time.Second {
		t.Errorf("Expected default BackendTimeout to be 60s, got %v", cfg.BackendTimeout)
	}

	if cfg.ProductBatchLimit != 50 {
		t.Errorf("Expected default ProductBatchLimit to be 50, got %d", cfg.ProductBatchLimit)
	}

	if cfg.FrameAncestors != DefaultFrameAncestors {
		t.Errorf("Expected default FrameAncestors, got '%s'", cfg.FrameAncestors)
	}

	if !cfg.CookieSecure {
		t.Errorf("Expected CookieSecure to default to true")
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	os.Setenv("PRODUCT_BATCH_LIMIT", "lots")
	os.Setenv("HISTORY_REFRESH_DELAY", "soon")
	defer os.Unsetenv("PRODUCT_BATCH_LIMIT")
	defer os.Unsetenv("HISTORY_REFRESH_DELAY")

	cfg := LoadConfig()

	if cfg.ProductBatchLimit != 50 {
		t.Errorf("Expected fallback ProductBatchLimit 50, got %d", cfg.ProductBatchLimit)
	}
	if cfg.HistoryRefreshDelay != 2*time.Second {
		t.Errorf("Expected fallback HistoryRefreshDelay 2s, got %v", cfg.HistoryRefreshDelay)
	}
}

func TestSessionSecretDefaultOnlyOutsideProduction(t *testing.T) {
	os.Unsetenv("SESSION_SECRET")
	os.Setenv("ENVIRONMENT", "development")
	defer os.Unsetenv("ENVIRONMENT")

	if cfg := LoadConfig(); cfg.SessionSecret != devSessionSecret {
		t.Errorf("Expected dev secret in development, got '%s'", cfg.SessionSecret)
	}

	os.Setenv("ENVIRONMENT", "production")
	cfg := LoadConfig()
	if cfg.SessionSecret != "" {
		t.Errorf("Expected no default secret in production, got '%s'", cfg.SessionSecret)
	}

	os.Setenv("SESSION_SECRET", "s3cret")
	defer os.Unsetenv("SESSION_SECRET")
	if cfg := LoadConfig(); cfg.SessionSecret != "s3cret" {
		t.Errorf("Expected explicit secret in production, got '%s'", cfg.SessionSecret)
	}
}
