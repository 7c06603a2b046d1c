package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"askcode/config"
)

func TestCohereReranker_ScoresInInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req cohereRerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		if len(req.Documents) != 3 {
			t.Errorf("expected 3 documents, got %d", len(req.Documents))
		}
		w.Write([]byte(`{"results":[
			{"index":2,"relevance_score":0.9},
			{"index":0,"relevance_score":0.5},
			{"index":1,"relevance_score":0.1}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "k")
	r, err := NewCohereReranker("TEST_COHERE_KEY", "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	scores, err := r.Score(context.Background(), "q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("score[%d] = %f, want %f", i, scores[i], want[i])
		}
	}
	if r.ModelName() != "rerank-english-v3.0" {
		t.Errorf("unexpected default model %s", r.ModelName())
	}
}

func TestCohereReranker_IncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "k")
	r, _ := NewCohereReranker("TEST_COHERE_KEY", "m", srv.URL)
	if _, err := r.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Error("expected error when a document is missing from the response")
	}
}

func TestSimpleReranker(t *testing.T) {
	r := NewSimpleReranker()
	scores, err := r.Score(context.Background(), "parse config", []string{
		"func parse(config string)",
		"func render()",
		"parse the input",
	})
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] != 1.0 {
		t.Errorf("expected full overlap, got %f", scores[0])
	}
	if scores[1] != 0 {
		t.Errorf("expected no overlap, got %f", scores[1])
	}
	if scores[2] != 0.5 {
		t.Errorf("expected half overlap, got %f", scores[2])
	}
}

func TestSimpleReranker_Identifiers(t *testing.T) {
	r := NewSimpleReranker()
	scores, err := r.Score(context.Background(), "how is the config loaded", []string{
		"func loadConfig(path string)",
		"var config_loaded = true",
		"the how is",
	})
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] != 0.5 {
		t.Errorf("expected camelCase split to match config, got %f", scores[0])
	}
	if scores[1] != 1.0 {
		t.Errorf("expected snake_case split to match both terms, got %f", scores[1])
	}
	if scores[2] != 0 {
		t.Errorf("expected stopwords to be ignored, got %f", scores[2])
	}
}

func TestNew(t *testing.T) {
	log := zap.NewNop()

	r, err := New(config.RerankerConfig{Provider: "none"}, log)
	if err != nil || r.Present() {
		t.Errorf("expected absent reranker for none, got %v %v", r.Present(), err)
	}

	r, err = New(config.RerankerConfig{Provider: "simple"}, log)
	if err != nil || !r.Present() {
		t.Errorf("expected simple reranker, got %v %v", r.Present(), err)
	}

	t.Setenv("TEST_COHERE_KEY", "")
	r, err = New(config.RerankerConfig{Provider: "cohere", APIKeyEnv: "TEST_COHERE_KEY"}, log)
	if err != nil || r.Present() {
		t.Errorf("expected cohere without key to be absent, got %v %v", r.Present(), err)
	}

	if _, err := New(config.RerankerConfig{Provider: "bogus"}, log); err == nil {
		t.Error("expected error for unknown provider")
	}
}
