package mcpserver

import (
	"time"

	"github.com/octobrain/octobrain/internal/store"
)

// MemoryOutput is the wire projection of a store.Memory.
type MemoryOutput struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	MemoryType     string    `json:"memory_type"`
	Tags           []string  `json:"tags,omitempty"`
	RelatedFiles   []string  `json:"related_files,omitempty"`
	Importance     float64   `json:"importance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`
	GitCommit      string    `json:"git_commit,omitempty"`
}

func toMemoryOutput(m *store.Memory) MemoryOutput {
	return MemoryOutput{
		ID:             m.ID,
		Title:          m.Title,
		Content:        m.Content,
		MemoryType:     string(m.MemoryType),
		Tags:           m.Tags,
		RelatedFiles:   m.RelatedFiles,
		Importance:     m.Importance,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		LastAccessedAt: m.LastAccessedAt,
		AccessCount:    m.AccessCount,
		GitCommit:      m.GitCommit,
	}
}

// MemorizeInput defines the input schema for the memorize tool.
type MemorizeInput struct {
	Title        string   `json:"title" jsonschema:"short memory title"`
	Content      string   `json:"content" jsonschema:"the memory body"`
	MemoryType   string   `json:"memory_type,omitempty" jsonschema:"one of the closed memory type set, default code"`
	Tags         []string `json:"tags,omitempty" jsonschema:"free-form tags, max 32"`
	RelatedFiles []string `json:"related_files,omitempty" jsonschema:"repo-relative paths this memory concerns"`
	Importance   float64  `json:"importance,omitempty" jsonschema:"0 to 1, default 0.5"`
	GitCommit    string   `json:"git_commit,omitempty" jsonschema:"commit hash this memory was recorded at"`
}

// MemorizeOutput defines the output schema for the memorize tool.
type MemorizeOutput struct {
	OK     bool         `json:"ok"`
	Memory MemoryOutput `json:"memory"`
}

// RememberInput defines the input schema for the remember tool.
type RememberInput struct {
	Queries      []string `json:"queries" jsonschema:"one or more search queries"`
	MemoryType   string   `json:"memory_type,omitempty" jsonschema:"restrict to one memory type"`
	Tags         []string `json:"tags,omitempty" jsonschema:"result must carry every listed tag"`
	RelatedFile  string   `json:"related_file,omitempty" jsonschema:"restrict to memories touching this file"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	MinRelevance float64  `json:"min_relevance,omitempty" jsonschema:"drop results scoring below this threshold"`
	Explain      bool     `json:"explain,omitempty" jsonschema:"include the dense/lexical breakdown behind each result's score"`
}

// ExplanationOutput is the dense/lexical breakdown behind a result's score.
type ExplanationOutput struct {
	DenseScore   float64  `json:"dense_score"`
	DenseRank    int      `json:"dense_rank"`
	LexicalScore float64  `json:"lexical_score"`
	LexicalRank  int      `json:"lexical_rank"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// RememberResultOutput pairs a memory with its retrieval relevance.
type RememberResultOutput struct {
	Memory    MemoryOutput       `json:"memory"`
	Relevance float64            `json:"relevance"`
	Explain   *ExplanationOutput `json:"explain,omitempty"`
}

// RememberOutput defines the output schema for the remember tool.
type RememberOutput struct {
	OK      bool                    `json:"ok"`
	Results []RememberResultOutput  `json:"results"`
}

// ForgetInput defines the input schema for the forget tool. Either ID or
// Query must be set; Query additionally requires Confirm.
type ForgetInput struct {
	ID      string `json:"id,omitempty" jsonschema:"exact memory id to delete"`
	Query   string `json:"query,omitempty" jsonschema:"delete every memory matching this query instead of a single id"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"required true when deleting by query"`
}

// ForgetOutput defines the output schema for the forget tool.
type ForgetOutput struct {
	OK         bool     `json:"ok"`
	DeletedIDs []string `json:"deleted_ids"`
}

// AutoLinkInput defines the input schema for the auto_link tool.
type AutoLinkInput struct {
	MemoryID  string  `json:"memory_id" jsonschema:"memory to link from"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity, default 0.75"`
	MaxLinks  int     `json:"max_links,omitempty" jsonschema:"maximum edges to create, default 5"`
}

// LinkOutput is a single edge auto_link created.
type LinkOutput struct {
	TargetID string  `json:"target_id"`
	Strength float64 `json:"strength"`
}

// AutoLinkOutput defines the output schema for the auto_link tool.
type AutoLinkOutput struct {
	OK    bool         `json:"ok"`
	Links []LinkOutput `json:"links"`
}

// MemoryGraphInput defines the input schema for the memory_graph tool.
type MemoryGraphInput struct {
	MemoryID string `json:"memory_id" jsonschema:"memory to traverse from"`
	Depth    int    `json:"depth,omitempty" jsonschema:"BFS hop limit, default 2, max 5"`
}

// HopOutput is one reachable memory in a memory_graph traversal.
type HopOutput struct {
	ID                  string  `json:"id"`
	MinHop              int     `json:"min_hop"`
	AccumulatedStrength float64 `json:"accumulated_strength"`
}

// MemoryGraphOutput defines the output schema for the memory_graph tool.
type MemoryGraphOutput struct {
	OK   bool        `json:"ok"`
	Hops []HopOutput `json:"hops"`
}

// KnowledgeSearchInput defines the input schema for the knowledge_search
// tool.
type KnowledgeSearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	URL     string `json:"url,omitempty" jsonschema:"restrict the search to this source, re-indexing it first if stale"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Explain bool   `json:"explain,omitempty" jsonschema:"include the dense/lexical breakdown behind each hit's score"`
}

// KnowledgeHitOutput is a single knowledge_search result.
type KnowledgeHitOutput struct {
	ChunkID   string             `json:"chunk_id"`
	SourceURL string             `json:"source_url"`
	Ordinal   int                `json:"ordinal"`
	Text      string             `json:"text"`
	Relevance float64            `json:"relevance"`
	Explain   *ExplanationOutput `json:"explain,omitempty"`
}

// KnowledgeSearchOutput defines the output schema for the knowledge_search
// tool.
type KnowledgeSearchOutput struct {
	OK   bool                 `json:"ok"`
	Hits []KnowledgeHitOutput `json:"hits"`
}
