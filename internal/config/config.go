package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds notifier configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	RabbitURL       string
	TriggerQueue    string
	TriggerDLQ      string
	PrefetchCount   int
	WorkerCount     int
	MaxDeliveries   int
	DatabaseURL     string
	RedisURL        string
	SuppressTTL     time.Duration
	FCMServerKey    string
	FCMEndpoint     string
	ProviderTimeout time.Duration

	FanoutMaxInFlight int
	PruneConcurrency  int

	CleanupSchedule      string
	CleanupTimezone      string
	CleanupConcurrency   int
	CleanupInactiveAfter time.Duration
	CleanupPageSize      int
	CleanupDeleteRPS     int
	CleanupLockTTL       time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "sensor_notifier"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "8082"),

		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		TriggerQueue:    getEnv("TRIGGER_QUEUE", "sensor.triggers"),
		TriggerDLQ:      getEnv("TRIGGER_DLQ", "sensor.triggers.failed"),
		PrefetchCount:   getEnvAsInt("TRIGGER_PREFETCH", 50),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 4),
		MaxDeliveries:   getEnvAsInt("MAX_DELIVERIES", 5),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		SuppressTTL:     getEnvAsDuration("SUPPRESS_TTL", 24*time.Hour),
		FCMServerKey:    getEnv("FCM_SERVER_KEY", ""),
		FCMEndpoint:     getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),

		FanoutMaxInFlight: getEnvAsInt("FANOUT_MAX_IN_FLIGHT", 0),
		PruneConcurrency:  getEnvAsInt("PRUNE_CONCURRENCY", 8),

		CleanupSchedule:      getEnv("CLEANUP_SCHEDULE", "@daily"),
		CleanupTimezone:      getEnv("CLEANUP_TIMEZONE", "UTC"),
		CleanupConcurrency:   getEnvAsInt("CLEANUP_CONCURRENCY", 3),
		CleanupInactiveAfter: getEnvAsDuration("CLEANUP_INACTIVE_AFTER", 72*time.Hour),
		CleanupPageSize:      getEnvAsInt("CLEANUP_PAGE_SIZE", 1000),
		CleanupDeleteRPS:     getEnvAsInt("CLEANUP_DELETE_RPS", 0),
		CleanupLockTTL:       getEnvAsDuration("CLEANUP_LOCK_TTL", time.Hour),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 15*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.FCMServerKey == "" {
		missing = append(missing, "FCM_SERVER_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.CleanupConcurrency <= 0 {
		return fmt.Errorf("CLEANUP_CONCURRENCY must be > 0, got %d", c.CleanupConcurrency)
	}
	if c.CleanupPageSize <= 0 {
		return fmt.Errorf("CLEANUP_PAGE_SIZE must be > 0, got %d", c.CleanupPageSize)
	}
	if c.CleanupInactiveAfter <= 0 {
		return fmt.Errorf("CLEANUP_INACTIVE_AFTER must be > 0, got %s", c.CleanupInactiveAfter)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
