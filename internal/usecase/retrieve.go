package usecase

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/domain"
	"askcode/internal/port"
)

// RetrievalStats describes how the final candidate set was chosen.
type RetrievalStats struct {
	Raw      int     `json:"raw"`
	Spread   float64 `json:"spread"`
	R        int     `json:"r"`
	Reranked bool    `json:"reranked"`
}

// Retriever fetches candidates from a session index and sizes the final
// set by how spread out the raw scores are.
type Retriever struct {
	indexes  port.IndexOpener
	reranker port.Optional[port.Reranker]
	cfg      config.RetrieveConfig
	log      *zap.Logger
}

func NewRetriever(indexes port.IndexOpener, reranker port.Optional[port.Reranker], cfg config.RetrieveConfig, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{indexes: indexes, reranker: reranker, cfg: cfg, log: log}
}

// Retrieve returns up to k chunks sorted by descending native score.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, k int, filters domain.Filters) ([]domain.ScoredChunk, error) {
	idx, err := r.indexes.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := idx.SimilaritySearch(ctx, query, k, filters)
	if err != nil {
		return nil, err
	}
	sortByScore(results)
	return results, nil
}

// RetrieveAndRerank fetches k raw candidates, reranks them when a reranker
// is available and truncates to the adaptive r.
func (r *Retriever) RetrieveAndRerank(ctx context.Context, sessionID, query string, k int, filters domain.Filters) ([]domain.ScoredChunk, RetrievalStats, error) {
	results, err := r.Retrieve(ctx, sessionID, query, k, filters)
	if err != nil {
		return nil, RetrievalStats{}, err
	}
	if len(results) == 0 {
		return nil, RetrievalStats{}, nil
	}

	n, spread := AdaptiveR(scoresOf(results), r.cfg)
	stats := RetrievalStats{Raw: len(results), Spread: spread, R: n}

	if rr, ok := r.reranker.Get(); ok {
		if r.rerank(ctx, rr, query, results) {
			stats.Reranked = true
		}
	}

	r.log.Debug("adaptive retrieval",
		zap.String("session_id", sessionID),
		zap.Int("k", k),
		zap.Float64("spread", spread),
		zap.Int("r", n),
		zap.Bool("reranked", stats.Reranked))

	return results[:n], stats, nil
}

// rerank scores results in place and re-sorts them by rerank score. On
// failure the native order is left untouched.
func (r *Retriever) rerank(ctx context.Context, rr port.Reranker, query string, results []domain.ScoredChunk) bool {
	texts := make([]string, len(results))
	for i, c := range results {
		texts[i] = c.Chunk.Text
	}

	scores, err := rr.Score(ctx, query, texts)
	if err != nil {
		r.log.Warn("reranking failed, falling back to native scores", zap.String("model", rr.ModelName()), zap.Error(err))
		return false
	}
	if len(scores) != len(results) {
		r.log.Warn("reranker returned wrong number of scores",
			zap.Int("want", len(results)), zap.Int("got", len(scores)))
		return false
	}

	for i := range results {
		s := scores[i]
		results[i].RerankScore = &s
	}
	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].RerankScore > *results[j].RerankScore
	})
	return true
}

// AdaptiveR picks how many candidates to keep from the raw score spread.
// Bunched scores widen the set to r_max; one dominant match narrows it to
// r_min. The result never exceeds len(scores).
func AdaptiveR(scores []float64, cfg config.RetrieveConfig) (int, float64) {
	if len(scores) == 0 {
		return 0, 0
	}

	spread := 0.0
	if len(scores) > 1 {
		lo, hi := scores[0], scores[0]
		for _, s := range scores[1:] {
			lo = min(lo, s)
			hi = max(hi, s)
		}
		spread = hi - lo
	}

	var n int
	switch {
	case spread < cfg.SpreadLow:
		n = cfg.RMax
	case spread < cfg.SpreadHigh:
		n = (cfg.RMin + cfg.RMax) / 2
	default:
		n = cfg.RMin
	}
	return min(n, len(scores)), spread
}

func scoresOf(chunks []domain.ScoredChunk) []float64 {
	out := make([]float64, len(chunks))
	for i, c := range chunks {
		out[i] = c.Score
	}
	return out
}

func sortByScore(chunks []domain.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
}
