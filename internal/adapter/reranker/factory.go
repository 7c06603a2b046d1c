package reranker

import (
	"fmt"

	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/port"
)

// New builds the configured reranker. A Cohere reranker without credentials
// is absent rather than an error, so queries fall back to native scores.
func New(cfg config.RerankerConfig, log *zap.Logger) (port.Optional[port.Reranker], error) {
	switch cfg.Provider {
	case "none", "":
		return port.None[port.Reranker](), nil
	case "simple":
		return port.Some[port.Reranker](NewSimpleReranker()), nil
	case "cohere":
		r, err := NewCohereReranker(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
		if err != nil {
			log.Info("reranker unavailable, using native scores", zap.Error(err))
			return port.None[port.Reranker](), nil
		}
		return port.Some[port.Reranker](r), nil
	default:
		return port.None[port.Reranker](), fmt.Errorf("unknown reranker provider: %s", cfg.Provider)
	}
}
