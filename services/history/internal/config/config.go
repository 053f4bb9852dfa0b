// Package config loads the history service's environment configuration.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// HistoryConfig carries everything the history service reads from the
// environment beyond the shared app config.
type HistoryConfig struct {
	JWTSecret []byte

	MongoURI    string
	MongoDB     string
	DatabaseURL string
	RedisDSN    string

	CatalogBaseURL  string
	CatalogAPIKey   string
	CatalogCacheTTL time.Duration

	EventTTL   time.Duration
	WriteRPS   float64
	WriteBurst int

	Production bool
}

// Load reads the history configuration. JWT_SECRET is the only hard
// requirement; everything else has a development-friendly default.
func Load() (HistoryConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return HistoryConfig{}, errors.New("JWT_SECRET is required")
	}

	cfg := HistoryConfig{
		JWTSecret:       []byte(secret),
		MongoURI:        strings.TrimSpace(os.Getenv("HISTORY_MONGO_URI")),
		MongoDB:         strings.TrimSpace(os.Getenv("HISTORY_MONGO_DB")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisDSN:        strings.TrimSpace(os.Getenv("REDIS_DSN")),
		CatalogBaseURL:  strings.TrimSpace(os.Getenv("CATALOG_BASE_URL")),
		CatalogAPIKey:   strings.TrimSpace(os.Getenv("CATALOG_API_KEY")),
		CatalogCacheTTL: envDuration("CATALOG_CACHE_TTL", 6*time.Hour),
		EventTTL:        envDuration("HISTORY_EVENT_TTL", 24*time.Hour),
		WriteRPS:        envFloat("HISTORY_WRITE_RPS", 5),
		WriteBurst:      envInt("HISTORY_WRITE_BURST", 10),
		Production:      strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production"),
	}
	if cfg.MongoDB == "" {
		cfg.MongoDB = "history"
	}
	return cfg, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
