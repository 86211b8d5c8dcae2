package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the control plane and
// worker binaries (the bench binary takes command-line flags instead).
// Fields are grouped by concern, mirroring how the
// teacher backend lays its own Config out.
type Config struct {
	// Application
	AppEnv     string
	AppPort    string
	AppName    string
	AppVersion string
	LogLevel   string

	// Redis (the external key/value store)
	RedisURL          string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisMaxRetries   int

	// Queue
	Queue struct {
		MaxRetriesDefault int
		BackoffSecDefault float64
		PromoteLimit      int64
		PromoteInterval   time.Duration
		RecordTTL         time.Duration
		DequeueTimeout    time.Duration
	}

	// Auth (optional bearer-token gate on mutating routes)
	Auth struct {
		Enabled   bool
		AdminHash string // bcrypt hash of the admin token
		JWTSecret string
		JWTIssuer string
	}

	// Rate limiting
	RateLimit struct {
		Enabled         bool
		RequestsPerSec  int
		Burst           int
		CleanupInterval time.Duration
	}

	// CORS
	CORS struct {
		AllowedOrigins []string
		AllowedMethods []string
		AllowedHeaders []string
	}

	// Monitoring
	Monitoring struct {
		ProcessMetricsEnabled bool
		ProcessMetricsPath    string
	}

	// WebSocket event stream
	WebSocket struct {
		Enabled        bool
		MaxConnections int
		PingInterval   time.Duration
	}

	// Demo controls the optional recurring load-burst scheduler, used
	// for soak-testing a long-lived deployment rather than production
	// traffic. Disabled by default.
	Demo struct {
		RecurringEnabled bool
		RecurringSpec    string // cron.WithSeconds() expression
		RecurringSize    string // "small", "medium", or "large"
	}
}

// Load reads configuration from the environment, falling back to
// .env.development / .env.test the way the teacher's Load does.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.development"); err != nil {
		_ = godotenv.Load(".env.test")
	}

	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppName:    getEnv("APP_NAME", "taskqueue"),
		AppVersion: getEnv("APP_VERSION", "0.1.0"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 20),
		RedisMinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNECTIONS", 5),
		RedisMaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
	}

	cfg.Queue.MaxRetriesDefault = getEnvAsInt("QUEUE_MAX_RETRIES_DEFAULT", 3)
	cfg.Queue.BackoffSecDefault = getEnvAsFloat("QUEUE_BACKOFF_SEC_DEFAULT", 1.5)
	cfg.Queue.PromoteLimit = int64(getEnvAsInt("QUEUE_PROMOTE_LIMIT", 200))
	cfg.Queue.PromoteInterval = parseDuration(getEnv("QUEUE_PROMOTE_INTERVAL", "1s"), time.Second)
	cfg.Queue.RecordTTL = parseDuration(getEnv("QUEUE_RECORD_TTL", "168h"), 7*24*time.Hour)
	cfg.Queue.DequeueTimeout = parseDuration(getEnv("QUEUE_DEQUEUE_TIMEOUT", "2s"), 2*time.Second)

	cfg.Auth.Enabled = getEnvAsBool("AUTH_ENABLED", false)
	cfg.Auth.AdminHash = getEnv("AUTH_ADMIN_TOKEN_HASH", "")
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "dev-secret-change-in-production")
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", "taskqueue")

	cfg.RateLimit.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", true)
	cfg.RateLimit.RequestsPerSec = getEnvAsInt("RATE_LIMIT_RPS", 50)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 100)
	cfg.RateLimit.CleanupInterval = parseDuration(getEnv("RATE_LIMIT_CLEANUP_INTERVAL", "60s"), 60*time.Second)

	cfg.CORS.AllowedOrigins = strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")
	cfg.CORS.AllowedMethods = strings.Split(getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"), ",")
	cfg.CORS.AllowedHeaders = strings.Split(getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Request-ID"), ",")

	cfg.Monitoring.ProcessMetricsEnabled = getEnvAsBool("PROCESS_METRICS_ENABLED", true)
	cfg.Monitoring.ProcessMetricsPath = getEnv("PROCESS_METRICS_PATH", "/internal/metrics")

	cfg.WebSocket.Enabled = getEnvAsBool("WS_ENABLED", true)
	cfg.WebSocket.MaxConnections = getEnvAsInt("WS_MAX_CONNECTIONS", 256)
	cfg.WebSocket.PingInterval = parseDuration(getEnv("WS_PING_INTERVAL", "30s"), 30*time.Second)

	cfg.Demo.RecurringEnabled = getEnvAsBool("DEMO_RECURRING_ENABLED", false)
	cfg.Demo.RecurringSpec = getEnv("DEMO_RECURRING_SPEC", "0 */5 * * * *")
	cfg.Demo.RecurringSize = getEnv("DEMO_RECURRING_SIZE", "small")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
