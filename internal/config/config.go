package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the binaries need. Built once in main and passed
// down to constructors; nothing reads the environment after Load returns.
type Config struct {
	DatabaseURL string
	RedisAddr   string
	HTTPAddr    string

	JWTSecret string
	TokenTTL  time.Duration

	S3  S3Config
	LLM LLMConfig

	LogLevel  string
	LogFormat string // json or text
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

type LLMConfig struct {
	Provider string // gemini or perplexity
	Model    string
	APIKey   string
	BaseURL  string

	// MaxAttempts bounds the rate-limit retry loop. 0 keeps the original
	// behaviour: retry forever.
	MaxAttempts int
	// RetryWait is the backoff used when the provider gives no hint.
	RetryWait time.Duration
}

func Load() *Config {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),
		HTTPAddr:    envOr("HTTP_ADDR", ":8000"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    envDuration("TOKEN_TTL", 24*time.Hour),
		S3: S3Config{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			Bucket:    os.Getenv("MINIO_BUCKET"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		},
		LLM: LLMConfig{
			Provider:    envOr("LLM_PROVIDER", "gemini"),
			Model:       envOr("LLM_MODEL", "gemini-2.0-flash"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			MaxAttempts: envInt("LLM_MAX_ATTEMPTS", 0),
			RetryWait:   envDuration("LLM_RETRY_WAIT", 30*time.Second),
		},
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
	}
	return cfg
}

// SetupLogger installs the process-wide slog default according to cfg.
func (c *Config) SetupLogger() {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
