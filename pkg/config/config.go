package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	DatabaseURL string
	RedisURL    string

	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleProjectID    string
	GooglePubSubTopic  string
	// Pull subscription name; empty disables the pull listener.
	GooglePubSubSubscription string
	GoogleCredentials        string
	// Shared secret expected as ?token= on the push endpoint.
	PushVerificationToken string
	WatchLabelIDs         []string

	AIProvider    string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string

	SyncWorkerConcurrency int
	SyncJobsPerSecond     int
	SyncLockTTL           time.Duration
	SyncMaxAttempts       int64
	SyncReclaimIdle       time.Duration
	FetchConcurrency      int
	UpsertBatchSize       int
	FullSyncMaxMessages   int

	ClassifyChunkSize     int
	ClassifyWorkers       int
	NewLabelBackfillLimit int

	WatchRenewInterval time.Duration
	WatchRenewWithin   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=mailsync port=5432 sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GoogleClientID:           getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:       getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:          getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:        getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GooglePubSubSubscription: getEnv("GOOGLE_PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:        getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		PushVerificationToken:    getEnv("PUSH_VERIFICATION_TOKEN", ""),
		WatchLabelIDs:            getEnvList("GMAIL_WATCH_LABEL_IDS"),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:   getEnv("OLLAMA_MODEL", ""),

		SyncWorkerConcurrency: getEnvInt("SYNC_WORKER_CONCURRENCY", 5),
		SyncJobsPerSecond:     getEnvInt("SYNC_JOBS_PER_SECOND", 10),
		SyncLockTTL:           getEnvDuration("SYNC_LOCK_TTL", 10*time.Minute),
		SyncMaxAttempts:       int64(getEnvInt("SYNC_MAX_ATTEMPTS", 5)),
		SyncReclaimIdle:       getEnvDuration("SYNC_RECLAIM_IDLE", time.Minute),
		FetchConcurrency:      getEnvInt("GMAIL_FETCH_CONCURRENCY", 15),
		UpsertBatchSize:       getEnvInt("UPSERT_BATCH_SIZE", 250),
		FullSyncMaxMessages:   getEnvInt("FULL_SYNC_MAX_MESSAGES", 500),

		ClassifyChunkSize:     getEnvInt("CLASSIFY_CHUNK_SIZE", 5),
		ClassifyWorkers:       getEnvInt("CLASSIFY_WORKERS", 3),
		NewLabelBackfillLimit: getEnvInt("NEW_LABEL_BACKFILL_LIMIT", 50),

		WatchRenewInterval: getEnvDuration("WATCH_RENEW_INTERVAL", time.Hour),
		WatchRenewWithin:   getEnvDuration("WATCH_RENEW_WITHIN", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
