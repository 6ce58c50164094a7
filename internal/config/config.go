// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッショントークンの受け渡し方式。
const (
	TransportCookie = "cookie"
	TransportBearer = "bearer"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider (Supabase GoTrue)
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	ProviderTimeout        time.Duration

	// Session
	JWTSecret                   string
	SessionTTL                  time.Duration
	SessionTransport            string
	SessionRevocationEnabled    bool
	RegistrationReplaceExisting bool

	// Server
	ServerPort     string
	BaseURL        string
	RequestTimeout time.Duration

	// Cookie
	CookieSecure   bool
	CookieDomain   string
	CookieSameSite http.SameSite

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel string

	// Worker
	CleanupInterval time.Duration
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在すれば先に読み込むが、既に設定済みの環境変数が優先される。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.JWTSecret = required("JWT_SECRET")
	cfg.SupabaseURL = required("SUPABASE_URL")
	cfg.SupabaseAnonKey = required("SUPABASE_ANON_KEY")
	cfg.SupabaseServiceRoleKey = required("SUPABASE_SERVICE_ROLE_KEY")
	cfg.BaseURL = required("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "3001")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.SessionTransport = strings.ToLower(getEnvString("SESSION_TRANSPORT", TransportCookie))
	cfg.SessionRevocationEnabled = getEnvBool("SESSION_REVOCATION_ENABLED", false)
	cfg.RegistrationReplaceExisting = getEnvBool("REGISTRATION_REPLACE_EXISTING", false)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 60*time.Second)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)

	if cfg.SessionTransport != TransportCookie && cfg.SessionTransport != TransportBearer {
		return nil, fmt.Errorf("SESSION_TRANSPORT must be %q or %q, got %q", TransportCookie, TransportBearer, cfg.SessionTransport)
	}

	sameSite, err := parseSameSite(getEnvString("COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, err
	}
	cfg.CookieSameSite = sameSite
	if sameSite == http.SameSiteNoneMode && !cfg.CookieSecure {
		return nil, errors.New("COOKIE_SAMESITE=none requires an https BASE_URL")
	}

	return cfg, nil
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("COOKIE_SAMESITE must be lax, strict or none, got %q", v)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を空白を除いて分割する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
