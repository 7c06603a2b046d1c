package bootstrap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/adapter/cache"
	"askcode/internal/adapter/embedding"
	"askcode/internal/adapter/llm"
	"askcode/internal/adapter/reranker"
	"askcode/internal/adapter/store"
	"askcode/internal/adapter/telemetry"
	"askcode/internal/logging"
	"askcode/internal/port"
	"askcode/internal/usecase"
)

// Container holds the process-wide engine and the handles it owns.
type Container struct {
	Config   *config.Config
	Log      *zap.Logger
	Engine   *usecase.Engine
	Registry *prometheus.Registry

	indexes *store.IndexPool
	cache   port.Cache
}

// Close releases the index handles and the cache connection.
func (c *Container) Close() error {
	err := errors.Join(c.indexes.Close(), c.cache.Close())
	_ = c.Log.Sync()
	return err
}

// Provider builds the Container at most once, however many goroutines ask.
type Provider struct {
	cfg *config.Config

	once      sync.Once
	container *Container
	err       error
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{cfg: cfg}
}

// Get returns the container, building it on first call. A failed build is
// not retried.
func (p *Provider) Get() (*Container, error) {
	p.once.Do(func() {
		p.container, p.err = build(p.cfg)
	})
	return p.container, p.err
}

func build(cfg *config.Config) (*Container, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	indexes, err := store.NewIndexPool(cfg.DataDir, emb, cfg.Index.HandleTTL, log.Named("index"))
	if err != nil {
		return nil, err
	}

	rr, err := reranker.New(cfg.Reranker, log.Named("reranker"))
	if err != nil {
		return nil, err
	}

	tiers, err := llm.NewTiers(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to create language models: %w", err)
	}
	if !tiers.Fast.Present() {
		log.Warn("no language model credentials, queries will return an error payload",
			zap.String("api_key_env", cfg.Models.APIKeyEnv))
	}

	respCache := cache.New(cfg.Cache, log)
	registry := prometheus.NewRegistry()

	engine, err := usecase.NewEngine(cfg, usecase.Capabilities{
		Indexes:  indexes,
		Reranker: rr,
		Fast:     tiers.Fast,
		High:     tiers.High,
		Cache:    respCache,
		Recorder: telemetry.New(cfg.Telemetry, log.Named("telemetry")),
	}, usecase.NewMetrics(registry), log.Named("engine"))
	if err != nil {
		indexes.Close()
		respCache.Close()
		return nil, err
	}

	log.Info("engine ready",
		zap.String("embedder", emb.ModelName()),
		zap.Bool("reranker", rr.Present()),
		zap.Bool("high_tier", tiers.High.Present()),
		zap.String("data_dir", cfg.DataDir))

	return &Container{
		Config:   cfg,
		Log:      log,
		Engine:   engine,
		Registry: registry,
		indexes:  indexes,
		cache:    respCache,
	}, nil
}
