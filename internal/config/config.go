package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	AdminJWTSecret string

	// Client cache + sync
	ClientCachePath string
	SyncPageSize    int
	SyncPageDelay   time.Duration
	SyncStaleAfter  time.Duration
	SyncOnStartup   bool
	RecentSyncLimit int

	// Upstream practice-management API
	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamTimeout time.Duration

	// Availability cache
	AvailabilityTTL             time.Duration
	AvailabilityRefreshInterval time.Duration
	AvailabilityWindowDays      int
	SlotDurationMins            int
	ConsultantIDs               string
	BookingDayStartHour         int
	BookingDayEndHour           int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ClientCachePath: getEnv("CLIENT_CACHE_PATH", "data/client_cache.db"),
		SyncPageSize:    getEnvAsInt("SYNC_PAGE_SIZE", 100),
		SyncPageDelay:   getEnvAsDuration("SYNC_PAGE_DELAY", 500*time.Millisecond),
		SyncStaleAfter:  getEnvAsDuration("SYNC_STALE_AFTER", time.Hour),
		SyncOnStartup:   getEnvAsBool("SYNC_ON_STARTUP", false),
		RecentSyncLimit: getEnvAsInt("RECENT_SYNC_LIMIT", 50),

		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamAPIKey:  getEnv("UPSTREAM_API_KEY", ""),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		AvailabilityTTL:             getEnvAsDuration("AVAILABILITY_TTL", 15*time.Minute),
		AvailabilityRefreshInterval: getEnvAsDuration("AVAILABILITY_REFRESH_INTERVAL", 10*time.Minute),
		AvailabilityWindowDays:      getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 14),
		SlotDurationMins:            getEnvAsInt("SLOT_DURATION_MINS", 60),
		ConsultantIDs:               getEnv("CONSULTANT_IDS", ""),
		BookingDayStartHour:         getEnvAsInt("BOOKING_DAY_START_HOUR", 9),
		BookingDayEndHour:           getEnvAsInt("BOOKING_DAY_END_HOUR", 17),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
