// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/bot and cmd/timetablectl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Lesson times: pair number to (start, end), used when the source reports a
// lesson number without explicit times
// --------------------------------------------------------------------------

type LessonTime struct {
	Start string
	End   string
}

var LessonTimes = map[int]LessonTime{
	1: {"08:00", "09:20"},
	2: {"09:35", "10:55"},
	3: {"11:10", "12:30"},
	4: {"12:45", "14:05"},
	5: {"14:20", "15:40"},
	6: {"15:55", "17:15"},
	7: {"17:30", "18:50"},
	8: {"19:00", "20:20"},
}

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Telegram
	BotToken string

	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// External timetable source
	BaseURL                 string
	OfflineFixturesDir      string
	FetchTimeout            time.Duration
	SourceRequestsPerMinute int

	// Refresh scheduling
	RefreshInterval   time.Duration
	ReconcileInterval time.Duration
	RefreshJitter     time.Duration

	// Notification scanner
	ScanInterval           time.Duration
	DefaultNotifyOffsetMin int
	DedupTolerance         time.Duration

	// Retention / cleanup
	EventRetentionDays        int
	NotificationRetentionDays int
	CleanupHour               int
	CleanupMinute             int

	// Time zone of the timetable source
	TZ string

	// Ops HTTP surface
	OpsAddr          string
	CORSAllowOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		BotToken: envOr("BOT_TOKEN", ""),

		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		BaseURL:                 strings.TrimRight(envOr("BASE_URL", "http://193.189.127.179:5010"), "/"),
		OfflineFixturesDir:      envOr("OFFLINE_FIXTURES_DIR", ""),
		FetchTimeout:            time.Duration(envInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		SourceRequestsPerMinute: envInt("SOURCE_REQUESTS_PER_MINUTE", 30),

		RefreshInterval:   time.Duration(max(1, envInt("REFRESH_INTERVAL_HOURS", 6))) * time.Hour,
		ReconcileInterval: time.Duration(max(1, envInt("REFRESH_RECONCILE_MINUTES", 15))) * time.Minute,
		RefreshJitter:     time.Duration(envInt("REFRESH_JITTER_SECONDS", 60)) * time.Second,

		ScanInterval:           time.Duration(max(1, envInt("SCAN_INTERVAL_SECONDS", 60))) * time.Second,
		DefaultNotifyOffsetMin: envInt("DEFAULT_NOTIFY_OFFSET_MIN", 5),
		DedupTolerance:         time.Duration(envInt("DEDUP_TOLERANCE_SECONDS", 180)) * time.Second,

		EventRetentionDays:        max(1, envInt("EVENT_RETENTION_DAYS", 90)),
		NotificationRetentionDays: max(1, envInt("NOTIFICATION_RETENTION_DAYS", 30)),
		CleanupHour:               envInt("CLEANUP_AT_HH", 3),
		CleanupMinute:             envInt("CLEANUP_AT_MM", 30),

		TZ: envOr("TZ", "Europe/Kyiv"),

		OpsAddr: envOr("OPS_ADDR", ":8090"),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),
	}, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
