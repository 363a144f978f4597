// Package config loads the service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the full recognized option surface.
type Config struct {
	ServiceName string
	LogLevel    string

	// Transport
	RedisAddr     string
	RedisPassword string
	Channel       string
	Group         string
	Partitions    int
	AlertChannel  string
	DLTGroup      string

	// Store
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Retry/backoff, shared by persistence and message recovery
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMultiplier      float64
	RetryMaxInterval     time.Duration

	// Scoring
	FraudThreshold   float64
	HighValueCeiling decimal.Decimal
	ModelEnabled     bool
	ModelPath        string

	// Observability
	MetricsAddr string
}

// Load reads the environment. A missing .env file is fine; explicit env vars
// always win because godotenv does not overwrite them.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: getEnv("SERVICE_NAME", "fraud-consumer"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		Channel:       getEnv("TRANSACTIONS_CHANNEL", "transactions"),
		Group:         getEnv("CONSUMER_GROUP", "fraud-detection-group"),
		Partitions:    getEnvInt("PARTITIONS", 3),
		AlertChannel:  getEnv("ALERTS_CHANNEL", "fraud-alerts"),
		DLTGroup:      getEnv("DLT_GROUP", "fraud-dlt-monitoring-group"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "fraud"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "frauddb"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RetryMaxAttempts:     getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: getEnvDuration("RETRY_INITIAL_INTERVAL", time.Second),
		RetryMultiplier:      getEnvFloat("RETRY_MULTIPLIER", 2.0),
		RetryMaxInterval:     getEnvDuration("RETRY_MAX_INTERVAL", 10*time.Second),

		FraudThreshold:   getEnvFloat("FRAUD_THRESHOLD", 0.5),
		HighValueCeiling: getEnvDecimal("HIGH_VALUE_CEILING", decimal.NewFromInt(900)),
		ModelEnabled:     getEnvBool("MODEL_ENABLED", false),
		ModelPath:        getEnv("MODEL_PATH", "model/fraud_model.json"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9464"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return def
}
