package reranker

import (
	"context"
	"strings"
	"unicode"
)

// SimpleReranker scores documents by query term coverage. It needs no
// network access and stands in when no hosted reranker is configured.
type SimpleReranker struct {
	stopwords map[string]struct{}
}

func NewSimpleReranker() *SimpleReranker {
	m := make(map[string]struct{}, len(stopwords))
	for _, s := range stopwords {
		m[s] = struct{}{}
	}
	return &SimpleReranker{stopwords: m}
}

// Score returns the fraction of distinct query terms present in each document.
func (r *SimpleReranker) Score(_ context.Context, query string, documents []string) ([]float64, error) {
	queryTerms := r.terms(query)
	scores := make([]float64, len(documents))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, doc := range documents {
		docTerms := r.terms(doc)
		matches := 0
		for term := range queryTerms {
			if _, ok := docTerms[term]; ok {
				matches++
			}
		}
		scores[i] = float64(matches) / float64(len(queryTerms))
	}
	return scores, nil
}

func (r *SimpleReranker) ModelName() string {
	return "simple-tf"
}

// terms lowercases text into a set of words, splitting identifiers on
// underscores and camelCase boundaries so that "loadConfig" matches "config".
func (r *SimpleReranker) terms(text string) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(w string) {
		w = strings.ToLower(w)
		if len(w) < 2 {
			return
		}
		if _, stop := r.stopwords[w]; stop {
			return
		}
		set[w] = struct{}{}
	}

	words := strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	for _, w := range words {
		parts := splitCamel(w)
		if len(parts) > 1 {
			add(w)
		}
		for _, p := range parts {
			add(p)
		}
	}
	return set
}

func splitCamel(w string) []string {
	var parts []string
	runes := []rune(w)
	start := 0
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

var stopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for",
	"from", "has", "in", "is", "it", "its", "of", "on",
	"that", "the", "to", "was", "were", "will", "with", "this",
	"have", "had", "but", "not", "or", "if", "so", "do", "does",
	"which", "what", "when", "where", "why", "how", "all",
}
