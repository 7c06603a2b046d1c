package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"askcode/config"
	"askcode/internal/domain"
	"askcode/internal/port"
)

// SessionIndex pairs a session's vector store with the embedder used to
// embed queries against it.
type SessionIndex struct {
	store    *BoltVectorStore
	embedder port.Embedder
}

func NewSessionIndex(store *BoltVectorStore, embedder port.Embedder) *SessionIndex {
	return &SessionIndex{store: store, embedder: embedder}
}

func (i *SessionIndex) SimilaritySearch(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.ScoredChunk, error) {
	vecs, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return i.store.Search(vecs[0], k, filter)
}

func (i *SessionIndex) Count() int {
	return i.store.Count()
}

// IndexPool opens session indexes on demand and keeps the handles for a
// sliding idle window. Evicted handles are closed.
type IndexPool struct {
	dataDir  string
	embedder port.Embedder
	ttl      time.Duration
	log      *zap.Logger

	// mu guards handle lookups and inserts only; it is never held while a
	// store is being opened.
	mu      sync.Mutex
	closed  bool
	handles *gocache.Cache
	opening singleflight.Group
}

func NewIndexPool(dataDir string, embedder port.Embedder, ttl time.Duration, log *zap.Logger) (*IndexPool, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return newIndexPool(dataDir, embedder, ttl, ttl/2, log)
}

// newIndexPool takes the janitor interval separately; zero disables the
// background sweep.
func newIndexPool(dataDir string, embedder port.Embedder, ttl, sweep time.Duration, log *zap.Logger) (*IndexPool, error) {
	if embedder == nil {
		return nil, errors.New("index pool requires an embedder")
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &IndexPool{
		dataDir:  dataDir,
		embedder: embedder,
		ttl:      ttl,
		log:      log,
		handles:  gocache.New(ttl, sweep),
	}
	p.handles.OnEvicted(func(sessionID string, v any) {
		if idx, ok := v.(*SessionIndex); ok {
			if err := idx.store.Close(); err != nil {
				p.log.Warn("failed to close session index", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	})
	return p, nil
}

var errPoolClosed = errors.New("index pool is closed")

// Open returns the session's index, opening it read-only on first use.
// Concurrent opens of the same session share one open.
func (p *IndexPool) Open(_ context.Context, sessionID string) (port.VectorIndex, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	if idx, ok := p.lookup(sessionID); ok {
		return idx, nil
	}

	v, err, _ := p.opening.Do(sessionID, func() (any, error) {
		// A previous flight may have finished while this caller waited.
		if idx, ok := p.lookup(sessionID); ok {
			return idx, nil
		}
		idx, err := p.openIndex(sessionID)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			idx.store.Close()
			return nil, errPoolClosed
		}
		p.handles.Set(sessionID, idx, p.ttl)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionIndex), nil
}

// lookup returns a live handle and slides its expiry. An entry that has
// expired but not been swept yet is deleted, which closes its store.
func (p *IndexPool) lookup(sessionID string) (*SessionIndex, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.handles.Get(sessionID); ok {
		p.handles.Set(sessionID, v, p.ttl)
		return v.(*SessionIndex), true
	}
	p.handles.Delete(sessionID)
	return nil, false
}

func (p *IndexPool) openIndex(sessionID string) (*SessionIndex, error) {
	path := config.SessionIndexPath(p.dataDir, sessionID)
	s, err := OpenVectorStore(path)
	if err != nil {
		if errors.Is(err, domain.ErrNotIngested) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotIngested, sessionID)
		}
		return nil, fmt.Errorf("failed to open index for session %s: %w", sessionID, err)
	}

	if reason := s.Info().CheckCompatible(p.embedder.ModelName(), p.embedder.Dimension()); reason != "" {
		s.Close()
		return nil, fmt.Errorf("%w: session %s: %s", domain.ErrIndexIncompatible, sessionID, reason)
	}

	p.log.Debug("opened session index",
		zap.String("session_id", sessionID),
		zap.Int("chunks", s.Count()),
		zap.String("path", path))
	return NewSessionIndex(s, p.embedder), nil
}

// Len returns the number of live handles.
func (p *IndexPool) Len() int {
	return p.handles.ItemCount()
}

// Close closes every handle, including expired ones the janitor has not
// swept yet. Opens after Close fail.
func (p *IndexPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.handles.DeleteExpired()
	for id := range p.handles.Items() {
		p.handles.Delete(id)
	}
	return nil
}
