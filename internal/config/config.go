package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion memory service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	SessionInactivityTimeout time.Duration

	TextGenMode    string
	TextGenBaseURL string
	TextGenAPIKey  string
	TextGenModel   string
	TextGenTimeout time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CompressThreshold  int
	CompressLookback   int
	TranscriptMaxChars int
	DedupeTags         bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		LogLevel:                 envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:                envOrDefault("APP_LOG_FORMAT", "text"),
		TextGenMode:              envOrDefault("TEXTGEN_MODE", "auto"),
		TextGenBaseURL:           envOrDefault("TEXTGEN_BASE_URL", "https://api.openai.com/v1"),
		TextGenAPIKey:            envTrimmed("TEXTGEN_API_KEY"),
		TextGenModel:             envOrDefault("TEXTGEN_MODEL", "gpt-4o-mini"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		RedisAddr:                envTrimmed("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		TextGenTimeout:           30 * time.Second,
		CompressThreshold:        10,
		CompressLookback:         15,
		TranscriptMaxChars:       6000,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TextGenTimeout, err = durationFromEnv("TEXTGEN_TIMEOUT", cfg.TextGenTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}
	cfg.CompressThreshold, err = intFromEnv("MEMORY_COMPRESS_THRESHOLD", cfg.CompressThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.CompressLookback, err = intFromEnv("MEMORY_COMPRESS_LOOKBACK", cfg.CompressLookback)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscriptMaxChars, err = intFromEnv("TAGGER_TRANSCRIPT_MAX_CHARS", cfg.TranscriptMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.DedupeTags, err = boolFromEnv("TAGGER_DEDUPE_TAGS", cfg.DedupeTags)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.TextGenTimeout <= 0 {
		return Config{}, fmt.Errorf("TEXTGEN_TIMEOUT must be positive")
	}
	if cfg.CompressThreshold <= 0 {
		return Config{}, fmt.Errorf("MEMORY_COMPRESS_THRESHOLD must be positive")
	}
	if cfg.CompressLookback <= 0 {
		return Config{}, fmt.Errorf("MEMORY_COMPRESS_LOOKBACK must be positive")
	}
	if cfg.TranscriptMaxChars <= 0 {
		return Config{}, fmt.Errorf("TAGGER_TRANSCRIPT_MAX_CHARS must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.TextGenMode)) {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid TEXTGEN_MODE: %q (expected auto|http|mock)", cfg.TextGenMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
