package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes runtime settings for the API, the worker pool and reportctl.
type Config struct {
	Port          string
	PublicBaseURL string

	AuthToken            string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	DatabaseURL string

	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiTimeoutMS      int
	GeminiMaxRetries     int
	GeminiModelPrimary   string
	GeminiModelFallback  string
	GeminiEmbeddingModel string

	StaticDir      string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	SendGridAPIKey  string
	FromEmail       string
	ReminderEmailTo string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioEchoURL     string
	CallToNumber      string

	ReminderDelaySeconds int
	CallDelaySeconds     int

	IndexDBPath              string
	IndexSeedFile            string
	EmbeddingCacheTTLSeconds int
	EmbeddingCacheMaxEntries int
	ReferenceSections        int
	ReportMaxChars           int

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisStream     string
	RedisDelayedKey string
	RedisDLQ        string
	RedisGroup      string
	RedisConsumer   string

	RateLimitRPS   float64
	RateLimitBurst int

	QueueMaxAttempts  int
	QueueBufferSize   int
	WorkerEnabled     bool
	WorkerConcurrency int
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8000"),
		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),

		AuthToken:            getEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),
		CORSAllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeoutMS:      getEnvInt("GEMINI_TIMEOUT_MS", 30000),
		GeminiMaxRetries:     getEnvInt("GEMINI_MAX_RETRIES", 2),
		GeminiModelPrimary:   getEnv("GEMINI_MODEL_PRIMARY", "gemini-flash-lite-latest"),
		GeminiModelFallback:  getEnv("GEMINI_MODEL_FALLBACK", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),

		StaticDir:      getEnv("STATIC_DIR", "static"),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "reports"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		FromEmail:       getEnv("FROM_EMAIL", ""),
		ReminderEmailTo: getEnv("REMINDER_EMAIL_TO", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioEchoURL:     getEnv("TWILIO_ECHO_URL", "http://demo.twimlet.com/echo"),
		CallToNumber:      getEnv("CALL_TO_NUMBER", ""),

		ReminderDelaySeconds: getEnvInt("REMINDER_DELAY_SECONDS", 2),
		CallDelaySeconds:     getEnvInt("CALL_DELAY_SECONDS", 5),

		IndexDBPath:              getEnv("INDEX_DB_PATH", "vector_db/sections.db"),
		IndexSeedFile:            getEnv("INDEX_SEED_FILE", ""),
		EmbeddingCacheTTLSeconds: getEnvInt("EMBEDDING_CACHE_TTL_SECONDS", 900),
		EmbeddingCacheMaxEntries: getEnvInt("EMBEDDING_CACHE_MAX_ENTRIES", 2000),
		ReferenceSections:        getEnvInt("REFERENCE_SECTIONS", 3),
		ReportMaxChars:           getEnvInt("REPORT_MAX_CHARS", 12000),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RedisStream:     getEnv("REDIS_STREAM", "report_tasks"),
		RedisDelayedKey: getEnv("REDIS_DELAYED_KEY", "report_tasks_delayed"),
		RedisDLQ:        getEnv("REDIS_DLQ_STREAM", "report_tasks_dlq"),
		RedisGroup:      getEnv("REDIS_GROUP", "report_workers"),
		RedisConsumer:   getEnv("REDIS_CONSUMER", "api-1"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		QueueMaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 1),
		QueueBufferSize:   getEnvInt("QUEUE_BUFFER_SIZE", 512),
		WorkerEnabled:     getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
	}
}

func (c Config) ReminderDelay() time.Duration {
	return time.Duration(c.ReminderDelaySeconds) * time.Second
}

func (c Config) CallDelay() time.Duration {
	return time.Duration(c.CallDelaySeconds) * time.Second
}

func (c Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutMS) * time.Millisecond
}

func (c Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.EmbeddingCacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
