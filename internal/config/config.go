// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage roots. Staging and data must share a filesystem so that
	// finalize can promote staged files with a single rename.
	DataRoot    string
	StagingRoot string

	// Transfer
	ChunkSize int64

	// Session eviction
	SessionTTL time.Duration

	// S3 mirror (optional — if bucket is empty the mirror is disabled)
	S3MirrorBucket string
	S3MirrorPrefix string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:    envOr("METRICS_ADDR", ":9090"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "json"),
		DataRoot:       envOr("DATA_ROOT", "/data/files"),
		StagingRoot:    envOr("STAGING_ROOT", "/data/staging"),
		ChunkSize:      envInt64("CHUNK_SIZE", 64*1024),
		SessionTTL:     envDuration("SESSION_TTL", time.Hour),
		S3MirrorBucket: envOr("S3_MIRROR_BUCKET", ""),
		S3MirrorPrefix: envOr("S3_MIRROR_PREFIX", "driftsync/"),
		S3Endpoint:     envOr("S3_ENDPOINT", ""),
		S3AccessKey:    envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:    envOr("S3_SECRET_KEY", ""),
		S3Region:       envOr("S3_REGION", "us-east-1"),
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.DataRoot == cfg.StagingRoot {
		return nil, fmt.Errorf("DATA_ROOT and STAGING_ROOT must differ")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
