package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr           string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	PresenceTTL    time.Duration
	PresenceSweep  time.Duration
	GameRetention  time.Duration
	RetentionSweep time.Duration
}

type ClientConfig struct {
	APIBaseURL string
	Debounce   time.Duration
	DataDir    string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("RAILTALLY_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:     envInt32Default("RAILTALLY_DB_MAX_CONNS", 16),
		DBMinConns:     envInt32Default("RAILTALLY_DB_MIN_CONNS", 2),
		PresenceTTL:    envDurationDefault("RAILTALLY_PRESENCE_TTL", 2*time.Minute),
		PresenceSweep:  envDurationDefault("RAILTALLY_PRESENCE_SWEEP_EVERY", 30*time.Second),
		GameRetention:  envDurationDefault("RAILTALLY_GAME_RETENTION", 90*24*time.Hour),
		RetentionSweep: envDurationDefault("RAILTALLY_RETENTION_SWEEP_EVERY", 6*time.Hour),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadClientFromEnv() ClientConfig {
	return ClientConfig{
		APIBaseURL: strings.TrimRight(envDefault("RAILTALLY_API_BASE_URL", "http://localhost:8080"), "/"),
		Debounce:   envDurationDefault("RAILTALLY_SYNC_DEBOUNCE", 800*time.Millisecond),
		DataDir:    strings.TrimSpace(os.Getenv("RAILTALLY_DATA_DIR")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt32Default(key string, fallback int32) int32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n <= 0 {
		return fallback
	}
	return int32(n)
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
