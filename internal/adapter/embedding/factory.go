package embedding

import (
	"fmt"
	"os"
	"time"

	"askcode/config"
	"askcode/internal/port"
)

type preset struct {
	baseURL    string
	needsKey   bool
	timeout    time.Duration
	dimensions map[string]int
	fallback   int
}

var presets = map[string]preset{
	"openai": {
		baseURL:  "https://api.openai.com/v1",
		needsKey: true,
		timeout:  60 * time.Second,
		dimensions: map[string]int{
			"text-embedding-3-small": 1536,
			"text-embedding-3-large": 3072,
			"text-embedding-ada-002": 1536,
		},
		fallback: 1536,
	},
	"jina": {
		baseURL:    "https://api.jina.ai/v1",
		needsKey:   true,
		timeout:    60 * time.Second,
		dimensions: map[string]int{"jina-embeddings-v3": 1024, "jina-embeddings-v2-base-code": 768},
		fallback:   1024,
	},
	"ollama": {
		baseURL: "http://localhost:11434/v1",
		timeout: 120 * time.Second,
		dimensions: map[string]int{
			"nomic-embed-text":  768,
			"mxbai-embed-large": 1024,
			"all-minilm":        384,
		},
		fallback: 768,
	},
}

// New builds the embedder named by cfg.Provider. The API key is read from
// the environment variable cfg.APIKeyEnv; a zero dimension is looked up by
// model name.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	if provider == "mock" {
		return NewMockEmbedder(cfg.Dimension), nil
	}

	p, ok := presets[provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	opts := Options{
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		Timeout:   p.timeout,
	}
	if opts.BaseURL == "" {
		opts.BaseURL = p.baseURL
	}
	if opts.Dimension <= 0 {
		opts.Dimension = p.fallback
		if d, ok := p.dimensions[cfg.Model]; ok {
			opts.Dimension = d
		}
	}
	if cfg.APIKeyEnv != "" {
		opts.APIKey = os.Getenv(cfg.APIKeyEnv)
	}
	if p.needsKey && opts.APIKey == "" {
		return nil, fmt.Errorf("%s embeddings need an API key in $%s", provider, cfg.APIKeyEnv)
	}

	return NewHTTPEmbedder(opts)
}
