package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultCohereURL = "https://api.cohere.ai/v1"

// Cohere has a limit of 1000 documents per request
const maxCohereDocs = 1000

// CohereReranker implements cross-encoder reranking using Cohere's API.
type CohereReranker struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Cohere API types
type cohereRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewCohereReranker creates a new Cohere reranker.
func NewCohereReranker(apiKeyEnv, model, baseURL string) (*CohereReranker, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if model == "" {
		model = "rerank-english-v3.0"
	}
	if baseURL == "" {
		baseURL = defaultCohereURL
	}

	return &CohereReranker{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Score returns one relevance score per document, in input order.
func (r *CohereReranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if len(documents) > maxCohereDocs {
		return nil, fmt.Errorf("too many documents to rerank: %d > %d", len(documents), maxCohereDocs)
	}

	jsonData, err := json.Marshal(cohereRerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp cohereRerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// The API returns results sorted by relevance; put them back in input order.
	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result index out of range: %d", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing document %d", i)
		}
	}

	return scores, nil
}

// ModelName returns the model name.
func (r *CohereReranker) ModelName() string {
	return r.model
}
