package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"askcode/internal/domain"
)

// encodeKey serializes fields deterministically: encoding/json sorts map keys.
func encodeKey(prefix string, fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		// Only plain strings, ints and filter structs reach here.
		panic(err)
	}
	return prefix + ":" + string(data)
}

// QueryKey derives the cache key for a question-answering request. modelTag is
// "tiered" when tiering is on, otherwise the fast model's name.
func QueryKey(sessionID, question string, k int, modelTag string, filters domain.Filters) string {
	return encodeKey("qa", map[string]any{
		"session": sessionID,
		"q":       question,
		"k":       k,
		"m":       modelTag,
		"filters": filters,
	})
}

func SuggestKey(sessionID, question string, k int) string {
	return encodeKey("suggest", map[string]any{
		"session": sessionID,
		"q":       question,
		"k":       k,
	})
}

// DocsKey derives the cache key for doc generation. The business context is
// hashed so free text never lands in a key; blank and absent hash the same.
func DocsKey(sessionID string, docType domain.DocType, audience domain.Audience, businessContext string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(businessContext)))
	return encodeKey("docs", map[string]any{
		"session":  sessionID,
		"doc_type": string(docType),
		"audience": string(audience),
		"ctx":      hex.EncodeToString(sum[:]),
	})
}
