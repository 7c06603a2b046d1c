package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"askcode/config"
	"askcode/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Embedding = config.EmbeddingConfig{Provider: "mock", Dimension: 32}
	cfg.Reranker.Provider = "simple"
	cfg.Models.APIKeyEnv = "ASKCODE_TEST_NO_KEY"
	cfg.Telemetry.Dir = filepath.Join(dir, "trace_logs")
	cfg.Logging.File = ""
	return cfg
}

func TestProvider_BuildsOnce(t *testing.T) {
	t.Setenv("ASKCODE_TEST_NO_KEY", "")
	p := NewProvider(testConfig(t))

	var wg sync.WaitGroup
	got := make([]*Container, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Get()
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range got[1:] {
		if c != got[0] {
			t.Fatal("expected every caller to observe the same container")
		}
	}
	if err := got[0].Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestProvider_EngineWithoutCredentials(t *testing.T) {
	t.Setenv("ASKCODE_TEST_NO_KEY", "")
	c, err := NewProvider(testConfig(t)).Get()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.Engine.Query(context.Background(), domain.QueryRequest{SessionID: "s1", Question: "q"})
	if err != nil {
		t.Fatalf("expected payload, got error %v", err)
	}
}

func TestProvider_NotIngested(t *testing.T) {
	t.Setenv("ASKCODE_TEST_NO_KEY", "key")
	cfg := testConfig(t)
	cfg.Models.BaseURL = "http://127.0.0.1:0"
	c, err := NewProvider(cfg).Get()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.Engine.Query(context.Background(), domain.QueryRequest{SessionID: "s1", Question: "q"})
	if !errors.Is(err, domain.ErrNotIngested) {
		t.Errorf("expected ErrNotIngested, got %v", err)
	}
}

func TestProvider_BadConfigIsSticky(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "loud"
	p := NewProvider(cfg)

	if _, err := p.Get(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if _, err := p.Get(); err == nil {
		t.Error("expected the build error to be returned again")
	}
}
