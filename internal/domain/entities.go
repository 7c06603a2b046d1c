package domain

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaFilePath   = "file_path"
	MetaChunkID    = "chunk_id"
	MetaSymbolType = "symbol_type"
	MetaSymbol     = "symbol"
	MetaLanguage   = "language"
	MetaRepo       = "repo"
	MetaDocType    = "doc_type"
)

type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

type ChunkMetadata struct {
	FilePath   string `json:"file_path"`
	ChunkID    string `json:"chunk_id"`
	SymbolType string `json:"symbol_type,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Language   string `json:"language,omitempty"`
	Repo       string `json:"repo,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
}

// MetadataFromMap builds chunk metadata from the flat string map stored in the index.
// The chunk id falls back to the index key when the pipeline did not record one.
func MetadataFromMap(id string, m map[string]string) ChunkMetadata {
	md := ChunkMetadata{
		FilePath:   m[MetaFilePath],
		ChunkID:    m[MetaChunkID],
		SymbolType: m[MetaSymbolType],
		Symbol:     m[MetaSymbol],
		Language:   m[MetaLanguage],
		Repo:       m[MetaRepo],
		DocType:    m[MetaDocType],
	}
	if md.ChunkID == "" {
		md.ChunkID = id
	}
	return md
}

// ScoredChunk is a retrieval candidate. Score is the index's native similarity
// (higher is better); RerankScore is set only when a reranker scored it.
type ScoredChunk struct {
	Chunk       Chunk
	Score       float64
	RerankScore *float64
}

// Filters restricts retrieval to chunks whose metadata matches every non-empty field.
type Filters struct {
	Repo       string `json:"repo,omitempty" yaml:"repo,omitempty"`
	DocType    string `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	SymbolType string `json:"symbol_type,omitempty" yaml:"symbol_type,omitempty"`
	Language   string `json:"language,omitempty" yaml:"language,omitempty"`
	PathGlob   string `json:"path_glob,omitempty" yaml:"path_glob,omitempty"`
}

func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Validate checks that the path glob is a well-formed doublestar pattern.
func (f Filters) Validate() error {
	if f.PathGlob != "" && !doublestar.ValidatePattern(f.PathGlob) {
		return InvalidRequest("invalid path_glob pattern: %q", f.PathGlob)
	}
	return nil
}

func (f Filters) Match(md ChunkMetadata) bool {
	if f.Repo != "" && md.Repo != f.Repo {
		return false
	}
	if f.DocType != "" && md.DocType != f.DocType {
		return false
	}
	if f.SymbolType != "" && md.SymbolType != f.SymbolType {
		return false
	}
	if f.Language != "" && md.Language != f.Language {
		return false
	}
	if f.PathGlob != "" {
		ok, err := doublestar.Match(f.PathGlob, md.FilePath)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Tier is a cost/quality level of language model.
type Tier string

const (
	TierFast Tier = "FAST"
	TierHigh Tier = "HIGH"
)

type DocType string

const (
	DocOverview     DocType = "overview"
	DocArchitecture DocType = "architecture"
	DocAPI          DocType = "api"
	DocOnboarding   DocType = "onboarding"
)

func (d DocType) Valid() bool {
	switch d {
	case DocOverview, DocArchitecture, DocAPI, DocOnboarding:
		return true
	}
	return false
}

type Audience string

const (
	AudienceEngineer    Audience = "engineer"
	AudiencePM          Audience = "pm"
	AudienceStakeholder Audience = "stakeholder"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceEngineer, AudiencePM, AudienceStakeholder:
		return true
	}
	return false
}

type QueryRequest struct {
	SessionID string
	Question  string
	Filters   Filters
}

type SuggestRequest struct {
	SessionID string
	Question  string
}

type DocsRequest struct {
	SessionID       string
	DocType         DocType
	Audience        Audience
	BusinessContext string
	K               int
}

type Answer struct {
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	ModelUsed     string   `json:"model_used,omitempty"`
	RetrievalConf float64  `json:"retrieval_conf,omitempty"`
	RerankConf    float64  `json:"rerank_conf,omitempty"`
}

type ProposalStatus string

const (
	ProposalProposed ProposalStatus = "proposed"
	ProposalFailed   ProposalStatus = "failed"
)

type Proposal struct {
	Status   ProposalStatus `json:"status"`
	Summary  string         `json:"summary"`
	Proposal string         `json:"proposal"`
	Sources  []string       `json:"sources"`
	Warning  string         `json:"warning"`
}

type DocsResult struct {
	DocType  DocType  `json:"doc_type"`
	Audience Audience `json:"audience"`
	Content  string   `json:"content"`
	Sources  []string `json:"sources"`
	Warning  string   `json:"warning"`
}

type MetricsSnapshot struct {
	Queries     int64   `json:"queries"`
	CacheHits   int64   `json:"cache_hits"`
	AvgLatencyS float64 `json:"avg_latency_s"`
}
