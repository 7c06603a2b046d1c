package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"askcode/config"
	"askcode/internal/adapter/cache"
	"askcode/internal/domain"
	"askcode/internal/port"
)

type fakeIndex struct {
	chunks []domain.ScoredChunk
	err    error
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, _ string, k int, filter domain.Filters) ([]domain.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ScoredChunk
	for _, c := range f.chunks {
		if filter.Match(c.Chunk.Metadata) {
			out = append(out, c)
		}
	}
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeIndex) Count() int { return len(f.chunks) }

type fakeOpener struct {
	sessions map[string]*fakeIndex
	err      error
}

func (f *fakeOpener) Open(_ context.Context, sessionID string) (port.VectorIndex, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	idx, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotIngested, sessionID)
	}
	return idx, nil
}

type fakeLLM struct {
	mu     sync.Mutex
	name   string
	output string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeLLM) GenerateWithSystem(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system, f.user = system, user
	return f.output, f.err
}

func (f *fakeLLM) ModelName() string { return f.name }

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReranker struct {
	scores []float64
	err    error
}

func (f *fakeReranker) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.scores) != len(texts) {
		return nil, errors.New("unexpected number of texts")
	}
	return append([]float64(nil), f.scores...), nil
}

func (f *fakeReranker) ModelName() string { return "fake-rerank" }

type captureRecorder struct {
	mu      sync.Mutex
	records []map[string]any
}

func (r *captureRecorder) Record(rec map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *captureRecorder) last() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

func chunk(id, path string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:       id,
			Text:     "code for " + id,
			Metadata: domain.ChunkMetadata{FilePath: path, ChunkID: id, Language: "go"},
		},
		Score: score,
	}
}

type testEnv struct {
	engine   *Engine
	opener   *fakeOpener
	fast     *fakeLLM
	high     *fakeLLM
	cache    *cache.MemoryCache
	recorder *captureRecorder
}

func newTestEnv(cfg *config.Config, chunks []domain.ScoredChunk, reranker port.Reranker) (*testEnv, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	env := &testEnv{
		opener:   &fakeOpener{sessions: map[string]*fakeIndex{"s1": {chunks: chunks}}},
		fast:     &fakeLLM{name: "fast-model"},
		high:     &fakeLLM{name: "high-model"},
		cache:    cache.NewMemoryCache(cfg.Cache.TTL),
		recorder: &captureRecorder{},
	}
	rr := port.None[port.Reranker]()
	if reranker != nil {
		rr = port.Some(reranker)
	}
	e, err := NewEngine(cfg, Capabilities{
		Indexes:  env.opener,
		Reranker: rr,
		Fast:     port.Some[port.LLM](env.fast),
		High:     port.Some[port.LLM](env.high),
		Cache:    env.cache,
		Recorder: env.recorder,
	}, NewMetrics(nil), nil)
	if err != nil {
		return nil, err
	}
	env.engine = e
	return env, nil
}
