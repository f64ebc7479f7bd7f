package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Errorf("addrs: %+v", cfg)
	}
	if cfg.ChunkSize != 64*1024 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "1024")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("DATA_ROOT", "/tmp/d")
	t.Setenv("STAGING_ROOT", "/tmp/s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 1024 || cfg.SessionTTL != 5*time.Minute {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsSharedRoots(t *testing.T) {
	t.Setenv("DATA_ROOT", "/tmp/same")
	t.Setenv("STAGING_ROOT", "/tmp/same")
	if _, err := Load(); err == nil {
		t.Error("shared data/staging root accepted")
	}
}

func TestLoadRejectsNonPositiveChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative chunk size accepted")
	}
}
