package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	LLM        LLMConfig
	Classifier ClassifierConfig
	Feed       FeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// LLMConfig configures the category inference provider.
type LLMConfig struct {
	APIKey                string
	BaseURL               string
	Model                 string
	RequestTimeoutSeconds int
	MaxRetries            int
	InitialBackoffMillis  int
}

// ClassifierConfig tunes the classification pipeline.
type ClassifierConfig struct {
	SentimentTimeoutMillis int
	Workers                int
	QueueSize              int
}

// FeedConfig tunes the change feed.
type FeedConfig struct {
	SnapshotLimit    int
	SubscriberBuffer int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  getEnv("REDIS_FEED_CHANNEL", "tickets:changes"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			APIKey:                os.Getenv("LLM_API_KEY"),
			BaseURL:               getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:                 getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
			RequestTimeoutSeconds: getEnvAsInt("LLM_REQUEST_TIMEOUT_SECONDS", 30),
			MaxRetries:            getEnvAsInt("LLM_MAX_RETRIES", 2),
			InitialBackoffMillis:  getEnvAsInt("LLM_INITIAL_BACKOFF_MILLIS", 1000),
		},
		Classifier: ClassifierConfig{
			SentimentTimeoutMillis: getEnvAsInt("SENTIMENT_TIMEOUT_MILLIS", 200),
			Workers:                getEnvAsInt("CLASSIFIER_WORKERS", 4),
			QueueSize:              getEnvAsInt("CLASSIFIER_QUEUE_SIZE", 256),
		},
		Feed: FeedConfig{
			SnapshotLimit:    getEnvAsInt("FEED_SNAPSHOT_LIMIT", 100),
			SubscriberBuffer: getEnvAsInt("FEED_SUBSCRIBER_BUFFER", 64),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-attempt provider timeout.
func (l LLMConfig) RequestTimeout() time.Duration {
	if l.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay.
func (l LLMConfig) InitialBackoff() time.Duration {
	if l.InitialBackoffMillis <= 0 {
		return time.Second
	}
	return time.Duration(l.InitialBackoffMillis) * time.Millisecond
}

// SentimentTimeout returns the stage A deadline.
func (c ClassifierConfig) SentimentTimeout() time.Duration {
	if c.SentimentTimeoutMillis <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.SentimentTimeoutMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
