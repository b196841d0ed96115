// Package retrieval implements octobrain's hybrid retriever (C4): dense
// vector search fused with BM25 lexical scoring, optional temporal decay,
// multi-query Reciprocal Rank Fusion, and optional cross-encoder reranking.
//
// The engine is shared by the memory manager and the knowledge pipeline —
// neither owns ranking logic; both hand the engine a query set and options
// and get back ranked (id, score) pairs.
package retrieval

import (
	"context"
	"time"
)

// Result is a single ranked hit: an opaque ID (a memory ID or a knowledge
// chunk ID) and its final relevance score in [0,1].
type Result struct {
	ID    string
	Score float64

	// Explain is populated only when the originating Options.Explain was
	// true; nil otherwise.
	Explain *Explanation
}

// Explanation surfaces the per-source signals behind a Result's final
// score: each side's contribution before fusion, its candidate rank
// within that side (0 means the id didn't appear on that side at all),
// and the lexical terms that matched.
type Explanation struct {
	DenseScore   float64
	DenseRank    int
	LexicalScore float64
	LexicalRank  int
	MatchedTerms []string
}

// ItemMeta carries the per-id signals the engine needs beyond raw
// dense/lexical scores: importance and recency for decay and tie-breaks,
// and Text for reranking. Callers that never enable decay or reranking
// may leave Text empty and importance/timestamps zero.
type ItemMeta struct {
	Importance     float64
	LastAccessedAt time.Time
	UpdatedAt      time.Time
	Text           string
}

// MetaProvider resolves ItemMeta for a batch of ids. The memory manager
// implements this over MetadataStore; the knowledge pipeline implements
// it over chunk text with Importance fixed at 1 and decay never enabled.
type MetaProvider interface {
	Get(ctx context.Context, ids []string) (map[string]ItemMeta, error)
}
