package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL        string
	RedisURL           string
	LogLevel           slog.Level
	SnowflakeWorkerID  int64
	SnowflakeProcessID int64
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           envOrDefault("REDIS_URL", "redis://localhost:6379"),
		LogLevel:           parseLogLevel(os.Getenv("LOG_LEVEL")),
		SnowflakeWorkerID:  parseInt64(os.Getenv("SNOWFLAKE_WORKER_ID"), 1),
		SnowflakeProcessID: parseInt64(os.Getenv("SNOWFLAKE_PROCESS_ID"), 1),
	}

	if cfg.DatabaseURL == "" {
		panic(fmt.Sprintf("required environment variables not set: %s", "DATABASE_URL"))
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseInt64(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
