package config

import (
	"fmt"
	"os"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	SessionSecret   string
	GoodreadsAPIKey string
}

// Load reads configuration from the environment. DATABASE_URL is required;
// everything else has a default or may be empty.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		SessionSecret:   getenv("SESSION_SECRET", ""),
		GoodreadsAPIKey: getenv("GOODREADS_API_KEY", ""),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
