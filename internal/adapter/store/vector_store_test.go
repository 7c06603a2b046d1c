package store

import (
	"errors"
	"path/filepath"
	"testing"

	"askcode/internal/domain"
	"askcode/internal/port"
)

func newTestStore(t *testing.T) (*BoltVectorStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions", "s1", "index.db")
	s, err := CreateVectorStore(path, "test-embed", 3)
	if err != nil {
		t.Fatalf("CreateVectorStore: %v", err)
	}
	items := []port.VectorItem{
		{ID: "a", Vector: []float32{1, 0, 0}, Text: "func Alpha()", Metadata: map[string]string{
			domain.MetaFilePath: "internal/alpha.go", domain.MetaLanguage: "go", domain.MetaRepo: "core",
		}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, Text: "func Beta()", Metadata: map[string]string{
			domain.MetaFilePath: "internal/sub/beta.go", domain.MetaLanguage: "go", domain.MetaRepo: "core",
		}},
		{ID: "c", Vector: []float32{0, 1, 0}, Text: "def gamma():", Metadata: map[string]string{
			domain.MetaFilePath: "scripts/gamma.py", domain.MetaLanguage: "python", domain.MetaRepo: "tools",
		}},
	}
	if err := s.Upsert(items); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return s, path
}

func TestSearch_OrderAndK(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	results, err := s.Search([]float32{1, 0, 0}, 2, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "a" || results[1].Chunk.ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by descending score")
	}
	if results[0].Chunk.Metadata.ChunkID != "a" {
		t.Errorf("expected chunk id to fall back to key, got %q", results[0].Chunk.Metadata.ChunkID)
	}
}

func TestSearch_FilterBeforeTopK(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	// c is the least similar, but the only python chunk.
	results, err := s.Search([]float32{1, 0, 0}, 1, domain.Filters{Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c" {
		t.Fatalf("expected [c], got %+v", results)
	}

	results, err = s.Search([]float32{1, 0, 0}, 5, domain.Filters{PathGlob: "internal/**/*.go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 glob matches, got %d", len(results))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	if _, err := s.Search([]float32{1, 0}, 1, domain.Filters{}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if err := s.Upsert([]port.VectorItem{{ID: "x", Vector: []float32{1}}}); err == nil {
		t.Error("expected upsert dimension mismatch error")
	}
}

func TestOpenVectorStore_ReadOnly(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := OpenVectorStore(path)
	if err != nil {
		t.Fatalf("OpenVectorStore: %v", err)
	}
	defer ro.Close()

	if ro.Count() != 3 {
		t.Errorf("expected 3 vectors, got %d", ro.Count())
	}
	info := ro.Info()
	if info.EmbeddingModel != "test-embed" || info.Dimension != 3 || info.Version != CurrentSchemaVersion {
		t.Errorf("unexpected schema info: %+v", info)
	}
	if err := ro.Upsert(nil); err == nil {
		t.Error("expected upsert on read-only store to fail")
	}
}

func TestOpenVectorStore_Missing(t *testing.T) {
	_, err := OpenVectorStore(filepath.Join(t.TempDir(), "nope", "index.db"))
	if !errors.Is(err, domain.ErrNotIngested) {
		t.Errorf("expected ErrNotIngested, got %v", err)
	}
}

func TestCheckCompatible(t *testing.T) {
	info := SchemaInfo{Version: CurrentSchemaVersion, EmbeddingModel: "m1", Dimension: 3}

	if r := info.CheckCompatible("m1", 3); r != "" {
		t.Errorf("expected compatible, got %q", r)
	}
	if r := info.CheckCompatible("m2", 3); r == "" {
		t.Error("expected model mismatch")
	}
	if r := info.CheckCompatible("m1", 4); r == "" {
		t.Error("expected dimension mismatch")
	}
	newer := info
	newer.Version = CurrentSchemaVersion + 1
	if r := newer.CheckCompatible("m1", 3); r == "" {
		t.Error("expected newer schema to be rejected")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.9999 {
		t.Errorf("identical vectors: got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: got %f", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector: got %f", got)
	}
}
