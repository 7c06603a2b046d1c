package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"askcode/internal/domain"
	"askcode/internal/port"
)

var (
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
)

const openTimeout = time.Second

// BoltVectorStore is one session's vector index persisted in BoltDB.
// Uses brute-force search over an in-memory copy; the DB is read only at open.
type BoltVectorStore struct {
	db       *bbolt.DB
	info     SchemaInfo
	readOnly bool
	mu       sync.RWMutex
	vectors  map[string]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	text     string
	metadata domain.ChunkMetadata
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Text     string            `json:"t"`
	Metadata map[string]string `json:"m,omitempty"`
}

// CreateVectorStore opens (or creates) a writable session index. The
// ingestion pipeline uses this; the query path only ever opens read-only.
func CreateVectorStore(path, model string, dimension int) (*BoltVectorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltVectorStore{db: db, vectors: make(map[string]vectorEntry)}
	if err := s.loadSchemaInfo(); err != nil {
		db.Close()
		return nil, err
	}
	if s.info.Version == 0 {
		s.info = SchemaInfo{Version: CurrentSchemaVersion, EmbeddingModel: model, Dimension: dimension}
		if err := s.saveSchemaInfo(); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

// OpenVectorStore opens an existing session index read-only.
// Returns domain.ErrNotIngested when the file does not exist.
func OpenVectorStore(path string) (*BoltVectorStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotIngested
		}
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	s := &BoltVectorStore{db: db, readOnly: true, vectors: make(map[string]vectorEntry)}
	if err := s.loadSchemaInfo(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			id := string(k)
			s.vectors[id] = vectorEntry{
				vector:   stored.Vector,
				text:     stored.Text,
				metadata: domain.MetadataFromMap(id, stored.Metadata),
			}
			return nil
		})
	})
}

// Upsert adds or updates vectors in the store.
func (s *BoltVectorStore) Upsert(items []port.VectorItem) error {
	if s.readOnly {
		return fmt.Errorf("vector store opened read-only")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			if len(item.Vector) != s.info.Dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.info.Dimension, len(item.Vector))
			}

			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Text:     item.Text,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}

			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}

			s.vectors[item.ID] = vectorEntry{
				vector:   item.Vector,
				text:     item.Text,
				metadata: domain.MetadataFromMap(item.ID, item.Metadata),
			}
		}

		return nil
	})
}

// Search returns the k chunks nearest to query by cosine similarity among
// those matching filter, highest first.
func (s *BoltVectorStore) Search(query []float32, k int, filter domain.Filters) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.info.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.info.Dimension, len(query))
	}

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	results := make([]domain.ScoredChunk, 0, len(s.vectors))
	for id, entry := range s.vectors {
		if !filter.Match(entry.metadata) {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk: domain.Chunk{ID: id, Text: entry.text, Metadata: entry.metadata},
			Score: cosineSimilarity(query, entry.vector),
		})
	}

	// Ties broken by id so equal scores give a stable order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Info returns the schema info recorded when the index was created.
func (s *BoltVectorStore) Info() SchemaInfo {
	return s.info
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
