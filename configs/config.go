package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFrameAncestors は管理画面をiframeで埋め込めるオリジンの既定値です。
const DefaultFrameAncestors = "'self' https://*.nuvemshop.com.br https://*.lojavirtualnuvem.com.br"

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string

	// BackendURL is the single canonical base URL of the bulk-edit backend.
	BackendURL     string
	BackendTimeout time.Duration

	ProductBatchLimit   int
	HistoryRefreshDelay time.Duration

	SessionSecret    string
	SessionTTL       time.Duration
	SessionStorePath string
	SessionCookie    string
	CookieSecure     bool

	FrameAncestors string
	AllowedOrigins []string

	APIKey        string
	AdminUsername string
	AdminPassword string
}

// devSessionSecret は開発環境でのみ使う署名鍵です。
const devSessionSecret = "dev-session-secret"

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")
	// 本番では既定値を使わず、未設定ならルーターの初期化で失敗させる
	secretDefault := devSessionSecret
	if strings.EqualFold(environment, "production") {
		secretDefault = ""
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         environment,
		BackendURL:          strings.TrimSuffix(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout:      getEnvDuration("BACKEND_TIMEOUT", 60*time.Second),
		ProductBatchLimit:   getEnvInt("PRODUCT_BATCH_LIMIT", 50),
		HistoryRefreshDelay: getEnvDuration("HISTORY_REFRESH_DELAY", 2*time.Second),
		SessionSecret:       getEnv("SESSION_SECRET", secretDefault),
		SessionTTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionStorePath:    getEnv("SESSION_STORE_PATH", ""),
		SessionCookie:       getEnv("SESSION_COOKIE", "bulkedit_session"),
		CookieSecure:        getEnvBool("COOKIE_SECURE", true),
		FrameAncestors:      getEnv("FRAME_ANCESTORS", DefaultFrameAncestors),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS"),
		APIKey:              getEnv("API_KEY", ""),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
	}
}

// IsProduction reports whether the service runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration は "2s" のような期間表記を読み込みます。"0" はゼロ時間として扱います。
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

// getEnvList はカンマ区切りの値を空要素を除いて返します。
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
