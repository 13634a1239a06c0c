package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateConsumerName builds a unique consumer name from hostname and PID
// so several pipeline instances can share one consumer group.
func generateConsumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "pipeline"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey       string
	ClassifyModel      string
	ClassifyMaxTokens  int
	ClassifyTemp       float64
	DraftModel         string
	DraftMaxTokens     int
	DraftTemp          float64

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Consumer (Redis Stream)
	ConsumerGroup string
	ConsumerName  string

	// Worker stages
	IngestWorkers     int
	FilterWorkers     int
	ClassifyWorkers   int
	ClassifyPerMinute int
	DraftWorkers      int
	DraftPerMinute    int
	MaxRetries        int

	// Webhook
	WebhookSecret     string
	WebhookTimeout    time.Duration
	WebhookMaxRetries int
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OpenAI
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		ClassifyModel:     getEnv("CLASSIFY_MODEL", "gpt-4o-mini"),
		ClassifyMaxTokens: getEnvInt("CLASSIFY_MAX_TOKENS", 300),
		ClassifyTemp:      getEnvFloat("CLASSIFY_TEMPERATURE", 0.3),
		DraftModel:        getEnv("DRAFT_MODEL", "gpt-4o"),
		DraftMaxTokens:    getEnvInt("DRAFT_MAX_TOKENS", 500),
		DraftTemp:         getEnvFloat("DRAFT_TEMPERATURE", 0.7),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// Consumer
		ConsumerGroup: getEnv("CONSUMER_GROUP", "mailgate-pipeline"),
		ConsumerName:  getEnv("CONSUMER_NAME", generateConsumerName()),

		// Worker stages
		IngestWorkers:     getEnvInt("INGEST_WORKERS", 5),
		FilterWorkers:     getEnvInt("FILTER_WORKERS", 5),
		ClassifyWorkers:   getEnvInt("CLASSIFY_WORKERS", 10),
		ClassifyPerMinute: getEnvInt("CLASSIFY_PER_MINUTE", 30),
		DraftWorkers:      getEnvInt("DRAFT_WORKERS", 5),
		DraftPerMinute:    getEnvInt("DRAFT_PER_MINUTE", 10),
		MaxRetries:        getEnvInt("JOB_MAX_RETRIES", 3),

		// Webhook
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		WebhookTimeout:    time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SEC", 10)) * time.Second,
		WebhookMaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 3),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
