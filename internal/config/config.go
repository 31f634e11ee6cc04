package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	PMSBaseURL     string
	PMSToken       string
	PMSConnectorID string
	PMSConsumerID  string
	PMSSchedulerID string
	PMSCancelerID  string
	PMSTimeout     time.Duration
	PMSRateLimit   float64 // requests per second, 0 disables limiting
	PMSBurst       int

	RosterPath       string
	PracticeTimezone string

	CacheBackend       string // "memory" or "redis"
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	ScheduleTTL        time.Duration
	RecordTTL          time.Duration
	RecordPurgeAfter   time.Duration
	CacheSweepInterval time.Duration

	DatabaseURL          string
	InteractionQueueSize int
	InteractionWorkers   int

	HTTPRateLimit     float64
	HTTPRateBurst     int
	RateLimitSweep    time.Duration
	TrustProxyHeaders bool // honour X-Forwarded-For / X-Real-IP from a trusted load balancer

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string // empty keeps the middleware defaults
	CORSAllowedMethods []string
	CORSMaxAge         time.Duration

	AvailabilityDays int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PMSBaseURL:     strings.TrimRight(getEnv("PMS_BASE_URL", "https://unify.kolla.dev/dental/v1"), "/"),
		PMSToken:       getEnv("PMS_TOKEN", ""),
		PMSConnectorID: getEnv("PMS_CONNECTOR_ID", ""),
		PMSConsumerID:  getEnv("PMS_CONSUMER_ID", ""),
		PMSSchedulerID: getEnv("PMS_SCHEDULER_ID", "HO7"),
		PMSCancelerID:  getEnv("PMS_CANCELER_ID", "HO7"),
		PMSTimeout:     getEnvAsDuration("PMS_TIMEOUT", 10*time.Second),
		PMSRateLimit:   getEnvAsFloat("PMS_RATE_LIMIT", 5),
		PMSBurst:       getEnvAsInt("PMS_BURST", 10),

		RosterPath:       getEnv("ROSTER_PATH", ""),
		PracticeTimezone: getEnv("PRACTICE_TIMEZONE", "America/New_York"),

		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		ScheduleTTL:        getEnvAsDuration("CACHE_SCHEDULE_TTL", 24*time.Hour),
		RecordTTL:          getEnvAsDuration("CACHE_RECORD_TTL", 24*time.Hour),
		RecordPurgeAfter:   getEnvAsDuration("CACHE_RECORD_PURGE_AFTER", 48*time.Hour),
		CacheSweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Hour),

		DatabaseURL:          getEnv("DATABASE_URL", ""),
		InteractionQueueSize: getEnvAsInt("INTERACTION_QUEUE_SIZE", 256),
		InteractionWorkers:   getEnvAsInt("INTERACTION_WORKERS", 2),

		HTTPRateLimit:     getEnvAsFloat("HTTP_RATE_LIMIT", 20),
		HTTPRateBurst:     getEnvAsInt("HTTP_RATE_BURST", 40),
		RateLimitSweep:    getEnvAsDuration("HTTP_RATE_LIMIT_SWEEP", time.Minute),
		TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		CORSAllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS"),
		CORSAllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS"),
		CORSMaxAge:         getEnvAsDuration("CORS_MAX_AGE", 10*time.Minute),

		AvailabilityDays: getEnvAsInt("AVAILABILITY_DAYS", 3),
	}
}

// UseRedisCache reports whether the redis cache backend was requested.
func (c *Config) UseRedisCache() bool {
	return c.CacheBackend == "redis"
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
