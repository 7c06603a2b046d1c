package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askcode/config"
	"askcode/internal/domain"
	"askcode/internal/port"
)

func TestAdaptiveR(t *testing.T) {
	cfg := config.DefaultConfig().Retrieve

	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"bunched scores widen to r_max", []float64{0.91, 0.90, 0.90, 0.89, 0.89, 0.88, 0.88, 0.87, 0.87, 0.87}, 8},
		{"bunched clamps to candidates", []float64{0.91, 0.90, 0.89, 0.88}, 4},
		{"dominant match narrows to r_min", []float64{0.95, 0.40, 0.39, 0.38, 0.37}, 3},
		{"middle band uses midpoint", []float64{0.90, 0.85, 0.82, 0.81, 0.80, 0.80, 0.80}, 5},
		{"spread exactly 0.15 is r_min", []float64{0.75, 0.60, 0.6, 0.6, 0.6}, 3},
		{"single candidate has zero spread", []float64{0.5}, 1},
		{"dominant pair clamps", []float64{0.95, 0.40}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := AdaptiveR(tt.scores, cfg)
			assert.Equal(t, tt.want, got)
		})
	}

	n, spread := AdaptiveR(nil, cfg)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, spread)
}

func TestRetrieveAndRerank_NoReranker(t *testing.T) {
	opener := &fakeOpener{sessions: map[string]*fakeIndex{"s1": {chunks: []domain.ScoredChunk{
		chunk("a", "a.go", 0.95),
		chunk("b", "b.go", 0.40),
		chunk("c", "c.go", 0.39),
		chunk("d", "d.go", 0.38),
	}}}}
	r := NewRetriever(opener, port.None[port.Reranker](), config.DefaultConfig().Retrieve, nil)

	got, stats, err := r.RetrieveAndRerank(context.Background(), "s1", "q", 4, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Equal(t, 4, stats.Raw)
	assert.Equal(t, 3, stats.R)
	assert.False(t, stats.Reranked)
	assert.InDelta(t, 0.57, stats.Spread, 1e-9)
	assert.Nil(t, got[0].RerankScore)
}

func TestRetrieveAndRerank_ReordersByRerankScore(t *testing.T) {
	opener := &fakeOpener{sessions: map[string]*fakeIndex{"s1": {chunks: []domain.ScoredChunk{
		chunk("a", "a.go", 0.91),
		chunk("b", "b.go", 0.90),
		chunk("c", "c.go", 0.89),
	}}}}
	rr := &fakeReranker{scores: []float64{0.1, 0.9, 0.5}}
	r := NewRetriever(opener, port.Some[port.Reranker](rr), config.DefaultConfig().Retrieve, nil)

	got, stats, err := r.RetrieveAndRerank(context.Background(), "s1", "q", 3, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, stats.Reranked)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID})
	require.NotNil(t, got[0].RerankScore)
	assert.Equal(t, 0.9, *got[0].RerankScore)
}

func TestRetrieveAndRerank_RerankFailureFallsBack(t *testing.T) {
	opener := &fakeOpener{sessions: map[string]*fakeIndex{"s1": {chunks: []domain.ScoredChunk{
		chunk("a", "a.go", 0.91),
		chunk("b", "b.go", 0.90),
	}}}}
	rr := &fakeReranker{err: errors.New("model offline")}
	r := NewRetriever(opener, port.Some[port.Reranker](rr), config.DefaultConfig().Retrieve, nil)

	got, stats, err := r.RetrieveAndRerank(context.Background(), "s1", "q", 2, domain.Filters{})
	require.NoError(t, err)
	assert.False(t, stats.Reranked)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Nil(t, got[0].RerankScore)
}

func TestRetrieve_SortsByScore(t *testing.T) {
	opener := &fakeOpener{sessions: map[string]*fakeIndex{"s1": {chunks: []domain.ScoredChunk{
		chunk("low", "a.go", 0.1),
		chunk("high", "b.go", 0.9),
	}}}}
	r := NewRetriever(opener, port.None[port.Reranker](), config.DefaultConfig().Retrieve, nil)

	got, err := r.Retrieve(context.Background(), "s1", "q", 5, domain.Filters{})
	require.NoError(t, err)
	assert.Equal(t, "high", got[0].Chunk.ID)
}

func TestRetrieve_NotIngested(t *testing.T) {
	r := NewRetriever(&fakeOpener{}, port.None[port.Reranker](), config.DefaultConfig().Retrieve, nil)

	_, _, err := r.RetrieveAndRerank(context.Background(), "missing", "q", 4, domain.Filters{})
	assert.ErrorIs(t, err, domain.ErrNotIngested)
}
