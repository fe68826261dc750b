package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from its environment.
type Config struct {
	HTTPPort      string
	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaEnabled bool

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RequestTimeout   time.Duration
	GuestCartTTL     time.Duration
}

// Load reads .env when present, then the environment. Missing values fall
// back to local-development defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "spargen"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		RetryMaxAttempts: getEnvInt("CART_RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("CART_RETRY_BASE_DELAY", 500*time.Millisecond),
		RequestTimeout:   getEnvDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		GuestCartTTL:     getEnvDuration("GUEST_CART_TTL", 30*24*time.Hour),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
		cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
