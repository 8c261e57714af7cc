// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// SoundCloud (client credentials)
	SoundcloudClientID     string
	SoundcloudClientSecret string
	SoundcloudUserID       string

	// Upstream endpoints
	MixcloudAPI    string
	CalendarICSURL string
	TagListURL     string

	// Database（空の場合はスナップショット永続化を無効化する）
	DatabaseURL string

	// Cache
	ShowCacheTTL     time.Duration
	CalendarCacheTTL time.Duration
	StaleExtension   time.Duration

	// Calendar
	CalendarWindowWeeks int

	// Upstream fetch
	UpstreamMinDelay time.Duration
	FetchTimeout     time.Duration
	MixcloudPageSize int
	MixcloudMaxItems int

	// Worker
	RefreshInterval time.Duration

	// Server
	ServerPort        string
	MetricsPort       string
	CORSAllowedOrigin string

	// CacheBustToken はPOST /api/cache/bust のBearerトークン。
	// 空の場合、バーストエンドポイントはすべてのリクエストを拒否する。
	CacheBustToken string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SoundcloudClientID = os.Getenv("SOUNDCLOUD_CLIENT_ID")
	if cfg.SoundcloudClientID == "" {
		missing = append(missing, "SOUNDCLOUD_CLIENT_ID")
	}

	cfg.SoundcloudClientSecret = os.Getenv("SOUNDCLOUD_CLIENT_SECRET")
	if cfg.SoundcloudClientSecret == "" {
		missing = append(missing, "SOUNDCLOUD_CLIENT_SECRET")
	}

	cfg.SoundcloudUserID = os.Getenv("SOUNDCLOUD_USER_ID")
	if cfg.SoundcloudUserID == "" {
		missing = append(missing, "SOUNDCLOUD_USER_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MixcloudAPI = getEnvString("MIXCLOUD_API", "https://api.mixcloud.com/thfradio/cloudcasts/")
	cfg.CalendarICSURL = getEnvString("CALENDAR_ICS_URL", "https://ics.teamup.com/feed/ksn22z3grmc5p1xhzp/7027389.ics")
	cfg.TagListURL = getEnvString("TAG_LIST_URL", "")
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.ShowCacheTTL = getEnvDuration("SHOW_CACHE_TTL", 12*time.Hour)
	cfg.CalendarCacheTTL = getEnvDuration("CALENDAR_CACHE_TTL", 5*time.Minute)
	cfg.StaleExtension = getEnvDuration("STALE_EXTENSION", 24*time.Hour)
	cfg.CalendarWindowWeeks = getEnvInt("CALENDAR_WINDOW_WEEKS", 2)
	cfg.UpstreamMinDelay = getEnvDuration("UPSTREAM_MIN_DELAY", 2*time.Second)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.MixcloudPageSize = getEnvInt("MIXCLOUD_PAGE_SIZE", 100)
	cfg.MixcloudMaxItems = getEnvInt("MIXCLOUD_MAX_ITEMS", 1000)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 5*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.CacheBustToken = getEnvString("CACHE_BUST_TOKEN", "")

	if cfg.CalendarWindowWeeks < 1 {
		return nil, fmt.Errorf("CALENDAR_WINDOW_WEEKS must be at least 1, got %d", cfg.CalendarWindowWeeks)
	}
	if cfg.MixcloudPageSize < 1 {
		return nil, fmt.Errorf("MIXCLOUD_PAGE_SIZE must be at least 1, got %d", cfg.MixcloudPageSize)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
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
