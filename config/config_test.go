package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.RMin != 3 {
		t.Errorf("expected RMin=3, got %d", cfg.Retrieve.RMin)
	}
	if cfg.Retrieve.RMax != 8 {
		t.Errorf("expected RMax=8, got %d", cfg.Retrieve.RMax)
	}
	if cfg.Models.ScoreThreshold != 0.18 {
		t.Errorf("expected ScoreThreshold=0.18, got %f", cfg.Models.ScoreThreshold)
	}
	if cfg.Retrieve.DocsTopK != 12 {
		t.Errorf("expected DocsTopK=12, got %d", cfg.Retrieve.DocsTopK)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected TTL=5m, got %s", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Retrieve.TopK != 4 {
		t.Errorf("expected default TopK=4, got %d", cfg.Retrieve.TopK)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "askcode.yaml")

	content := `
retrieve:
  top_k: 10
  r_max: 6
models:
  tiering: false
cache:
  ttl: 90s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.RMax != 6 {
		t.Errorf("expected RMax=6, got %d", cfg.Retrieve.RMax)
	}
	if cfg.Retrieve.RMin != 3 {
		t.Errorf("expected RMin to keep default 3, got %d", cfg.Retrieve.RMin)
	}
	if cfg.Models.Tiering {
		t.Error("expected Tiering=false")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("expected TTL=90s, got %s", cfg.Cache.TTL)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ASKCODE_RETRIEVE_TOP_K", "7")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7 from env, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/0" {
		t.Errorf("expected redis url from REDIS_URL, got %q", cfg.Cache.RedisURL)
	}
}

func TestLoad_InvalidRange(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "askcode.yaml")

	content := `
retrieve:
  r_min: 9
  r_max: 4
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected validation error for r_min > r_max")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".askcode"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".askcode", "config.yaml")

	content := `
data_dir: /srv/askcode
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != "/srv/askcode" {
		t.Errorf("expected DataDir=/srv/askcode, got %s", cfg.DataDir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "askcode.yaml")

	cfg := DefaultConfig()
	cfg.Retrieve.TopK = 11
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Retrieve.TopK != 11 {
		t.Errorf("expected TopK=11, got %d", loaded.Retrieve.TopK)
	}
	if loaded.Models.Timeout != 60*time.Second {
		t.Errorf("expected Timeout=60s, got %s", loaded.Models.Timeout)
	}
}

func TestSessionIndexPath(t *testing.T) {
	path := SessionIndexPath("/var/lib/askcode", "abc123")
	expected := filepath.Join("/var/lib/askcode", "sessions", "abc123", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
