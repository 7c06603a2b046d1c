package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBatchSize = 100

// Options configure an HTTPEmbedder. Any server speaking the OpenAI
// /embeddings protocol works.
type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	BatchSize int
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	opts   Options
	client *http.Client
}

func NewHTTPEmbedder(opts Options) (*HTTPEmbedder, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("embedding base url is empty")
	}
	if opts.Model == "" {
		return nil, errors.New("embedding model is empty")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("unknown dimension for embedding model %s", opts.Model)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &HTTPEmbedder{opts: opts, client: &http.Client{Timeout: opts.Timeout}}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. Large inputs are sent
// in batches.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Input: texts, Model: e.opts.Model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	var parsed embedResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil {
			return nil, fmt.Errorf("embedding api %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("embedding api %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", decodeErr)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding api returned index %d for %d inputs", d.Index, len(texts))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embedding api returned no vector for input %d", i)
		}
	}
	return vecs, nil
}

func (e *HTTPEmbedder) Dimension() int {
	return e.opts.Dimension
}

func (e *HTTPEmbedder) ModelName() string {
	return e.opts.Model
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
