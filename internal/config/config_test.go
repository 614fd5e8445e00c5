package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Environment != "development" {
		t.Fatalf("expected development default, got %s", cfg.Environment)
	}
	if cfg.Server.Port != 8380 {
		t.Fatalf("expected default port 8380, got %d", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected default redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.ChunkTimeout != 120*time.Second {
		t.Fatalf("expected 120s chunk timeout, got %s", cfg.Pipeline.ChunkTimeout)
	}
	if cfg.Pipeline.LLMProvider != "gemini" {
		t.Fatalf("expected gemini default, got %s", cfg.Pipeline.LLMProvider)
	}
	if cfg.Storage.Provider != "local" {
		t.Fatalf("expected local storage default, got %s", cfg.Storage.Provider)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := &Config{}
	bad.ApplyDefaults()
	bad.Pipeline.LLMProvider = "openai"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown llm provider to fail validation")
	}

	bad = &Config{}
	bad.ApplyDefaults()
	bad.Environment = "prod"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid environment to fail validation")
	}

	bad = &Config{}
	bad.ApplyDefaults()
	bad.Storage.Provider = "gcs"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown storage provider to fail validation")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte(`
environment: staging
redis:
  addr: redis.internal:6380
pipeline:
  workers: 8
  llm_provider: ollama
whisper:
  url: http://whisper:8387
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("test", WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected staging, got %s", cfg.Environment)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("expected file redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.LLMProvider != "ollama" {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Whisper.URL != "http://whisper:8387" {
		t.Fatalf("unexpected whisper url: %s", cfg.Whisper.URL)
	}
	// untouched sections still get defaults
	if cfg.Server.Port != 8380 {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REDIS_ADDR", "override:6379")

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Addr != "override:6379" {
		t.Fatalf("expected env override, got %s", cfg.Redis.Addr)
	}
}
