package usecase

import (
	"regexp"
	"sort"
	"strings"

	"askcode/internal/domain"
)

// NotPresentAnswer is returned whenever no grounded answer survives.
const NotPresentAnswer = "This information is not present in the uploaded codebase."

// A line must end with [source: id] or [source: id1, id2].
var citationPattern = regexp.MustCompile(`\[source:\s*([A-Za-z0-9_.:-]+(?:\s*,\s*[A-Za-z0-9_.:-]+)*)\s*\]$`)

// EnforceCitations keeps the lines of output whose trailing citation names
// at least one retrieved chunk. It returns false when no line survives.
func EnforceCitations(output string, chunks []domain.ScoredChunk) (string, bool) {
	retrieved := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		retrieved[c.Chunk.Metadata.ChunkID] = struct{}{}
	}

	var kept []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := citationPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, id := range strings.Split(m[1], ",") {
			if _, ok := retrieved[strings.TrimSpace(id)]; ok {
				kept = append(kept, line)
				break
			}
		}
	}

	if len(kept) == 0 {
		return NotPresentAnswer, false
	}
	return strings.Join(kept, "\n"), true
}

// SourcesOf returns the sorted, deduplicated file paths of chunks.
func SourcesOf(chunks []domain.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		p := c.Chunk.Metadata.FilePath
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
