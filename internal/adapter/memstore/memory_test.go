package memstore

import (
	"context"
	"errors"
	"testing"

	"askcode/internal/adapter/embedding"
	"askcode/internal/domain"
)

func TestMemoryStore_PutAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(embedding.NewMockEmbedder(64))

	err := s.Put(ctx, "s1", []domain.Chunk{
		{ID: "c1", Text: "load config from yaml file", Metadata: domain.ChunkMetadata{FilePath: "config/config.go", Language: "go"}},
		{ID: "c2", Text: "render html page", Metadata: domain.ChunkMetadata{FilePath: "web/page.py", Language: "python"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	idx, err := s.Open(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 2 {
		t.Errorf("expected 2 chunks, got %d", idx.Count())
	}

	results, err := idx.SimilaritySearch(ctx, "yaml config", 1, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Fatalf("expected c1 first, got %+v", results)
	}
	if results[0].Chunk.Metadata.ChunkID != "c1" {
		t.Errorf("expected chunk id to default to id, got %q", results[0].Chunk.Metadata.ChunkID)
	}

	results, err = idx.SimilaritySearch(ctx, "yaml config", 5, domain.Filters{Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c2" {
		t.Errorf("expected filter to keep only c2, got %+v", results)
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(embedding.NewMockEmbedder(16))

	if err := s.Put(ctx, "s1", []domain.Chunk{{ID: "c1", Text: "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "s1", []domain.Chunk{{ID: "c1", Text: "new"}}); err != nil {
		t.Fatal(err)
	}
	idx, _ := s.Open(ctx, "s1")
	if idx.Count() != 1 {
		t.Errorf("expected replacement, got %d chunks", idx.Count())
	}
}

func TestMemoryStore_NotIngested(t *testing.T) {
	s := NewMemoryStore(embedding.NewMockEmbedder(16))
	if _, err := s.Open(context.Background(), "nope"); !errors.Is(err, domain.ErrNotIngested) {
		t.Errorf("expected ErrNotIngested, got %v", err)
	}
	s.Put(context.Background(), "gone", []domain.Chunk{{ID: "x", Text: "x"}})
	s.Drop("gone")
	if _, err := s.Open(context.Background(), "gone"); !errors.Is(err, domain.ErrNotIngested) {
		t.Errorf("expected ErrNotIngested after Drop, got %v", err)
	}
}
