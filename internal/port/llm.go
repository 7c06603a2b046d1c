package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// GenerateWithSystem generates text with a system prompt.
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// Reranker scores query-document pairs for relevance.
type Reranker interface {
	// Score returns one relevance score per text, in input order (higher is better).
	Score(ctx context.Context, query string, texts []string) ([]float64, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}
