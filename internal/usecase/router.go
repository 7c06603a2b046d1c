package usecase

import (
	"askcode/config"
	"askcode/internal/domain"
)

// Route is the model tier chosen for one query and the signals behind it.
type Route struct {
	Tier             domain.Tier
	AvgScore         float64
	RerankConfidence float64
	HasRerank        bool
}

// Router escalates to the high tier when retrieval looks weak.
type Router struct {
	Tiering         bool
	ScoreThreshold  float64
	RerankThreshold float64
}

func NewRouter(cfg config.ModelsConfig) Router {
	return Router{
		Tiering:         cfg.Tiering,
		ScoreThreshold:  cfg.ScoreThreshold,
		RerankThreshold: cfg.RerankThreshold,
	}
}

// Decide routes to the high tier iff tiering is on and either the mean raw
// score is below ScoreThreshold or, when rerank scores exist, the rerank
// confidence is below RerankThreshold.
//
// Without a reranker there is no rerank signal, and treating it as zero
// would send every query to the high tier; only the raw score decides.
func (r Router) Decide(chunks []domain.ScoredChunk) Route {
	route := Route{Tier: domain.TierFast, AvgScore: AverageScore(chunks)}
	route.RerankConfidence, route.HasRerank = RerankConfidence(chunks)

	if !r.Tiering {
		return route
	}
	if route.AvgScore < r.ScoreThreshold || (route.HasRerank && route.RerankConfidence < r.RerankThreshold) {
		route.Tier = domain.TierHigh
	}
	return route
}

// AverageScore is the mean native score, 0 for no chunks.
func AverageScore(chunks []domain.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range chunks {
		sum += c.Score
	}
	return sum / float64(len(chunks))
}

// RerankConfidence is mean(rerank) - (max(rerank) - min(rerank)). It
// reports false unless every chunk carries a rerank score.
func RerankConfidence(chunks []domain.ScoredChunk) (float64, bool) {
	if len(chunks) == 0 {
		return 0, false
	}
	var sum, lo, hi float64
	for i, c := range chunks {
		if c.RerankScore == nil {
			return 0, false
		}
		s := *c.RerankScore
		if i == 0 {
			lo, hi = s, s
		}
		lo = min(lo, s)
		hi = max(hi, s)
		sum += s
	}
	return sum/float64(len(chunks)) - (hi - lo), true
}
