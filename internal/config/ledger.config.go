package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	// LockTimeout bounds how long a mutating operation waits for the
	// account locks before reporting the ledger busy.
	LockTimeout time.Duration
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:   getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:   getEnv("REDIS_PASS", ""),
		LockTimeout: time.Duration(getEnvAsInt("LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
