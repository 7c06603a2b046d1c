package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"askcode/internal/domain"
	"askcode/internal/port"
)

// MemoryStore is an in-process IndexOpener. Sessions are populated with Put;
// queries are embedded with the shared embedder and scored by cosine similarity.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder port.Embedder
	sessions map[string][]entry
}

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

func NewMemoryStore(embedder port.Embedder) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		sessions: make(map[string][]entry),
	}
}

// Put embeds and stores chunks under sessionID, replacing chunks with the same id.
func (s *MemoryStore) Put(ctx context.Context, sessionID string, chunks []domain.Chunk) error {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.sessions[sessionID]
	pos := make(map[string]int, len(existing))
	for i, e := range existing {
		pos[e.chunk.ID] = i
	}
	for i, c := range chunks {
		if c.Metadata.ChunkID == "" {
			c.Metadata.ChunkID = c.ID
		}
		e := entry{chunk: c, vector: vecs[i]}
		if j, ok := pos[c.ID]; ok {
			existing[j] = e
			continue
		}
		pos[c.ID] = len(existing)
		existing = append(existing, e)
	}
	s.sessions[sessionID] = existing
	return nil
}

// Drop removes a session.
func (s *MemoryStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *MemoryStore) Open(_ context.Context, sessionID string) (port.VectorIndex, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotIngested, sessionID)
	}
	return &sessionIndex{store: s, sessionID: sessionID}, nil
}

type sessionIndex struct {
	store     *MemoryStore
	sessionID string
}

func (i *sessionIndex) SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.ScoredChunk, error) {
	vecs, err := i.store.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	q := vecs[0]

	i.store.mu.RLock()
	defer i.store.mu.RUnlock()

	var results []domain.ScoredChunk
	for _, e := range i.store.sessions[i.sessionID] {
		if !filter.Match(e.chunk.Metadata) {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: e.chunk, Score: cosine(q, e.vector)})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (i *sessionIndex) Count() int {
	i.store.mu.RLock()
	defer i.store.mu.RUnlock()
	return len(i.store.sessions[i.sessionID])
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
