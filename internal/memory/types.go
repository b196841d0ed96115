// Package memory implements octobrain's memory manager (C5): the CRUD
// and retrieval surface over stored memories, layered on the metadata,
// vector, and lexical stores and the shared hybrid retrieval engine.
package memory

import (
	"time"

	"github.com/octobrain/octobrain/internal/retrieval"
	"github.com/octobrain/octobrain/internal/store"
)

// MemorizeInput is the validated input to Manager.Memorize, per spec.md
// §3's Memory fields.
type MemorizeInput struct {
	Title        string
	Content      string
	MemoryType   store.MemoryType
	Tags         []string
	RelatedFiles []string
	Importance   float64 // zero means "use DefaultImportance"
	GitCommit    string
}

// DefaultImportance is assigned to a memorized memory when the caller
// doesn't specify one.
const DefaultImportance = 0.5

// UpdatePatch carries the fields of a memory to change. A nil pointer
// field means "leave unchanged"; Content changing triggers re-embedding
// and re-indexing.
type UpdatePatch struct {
	Title        *string
	Content      *string
	Tags         *[]string
	RelatedFiles *[]string
	Importance   *float64
}

// RememberOptions narrows and configures a Remember call.
type RememberOptions struct {
	Type         store.MemoryType // zero means unconstrained
	Tags         []string         // memory must carry ALL of these tags
	RelatedFile  string           // zero means unconstrained
	Limit        int
	MinRelevance float64
	UseReranker  bool

	// Explain requests that each RememberResult carry the dense/lexical
	// breakdown behind its relevance score.
	Explain bool
}

// RememberResult pairs a hydrated Memory with its retrieval relevance.
type RememberResult struct {
	Memory    *store.Memory
	Relevance float64

	// Explain is non-nil only when RememberOptions.Explain was set.
	Explain *retrieval.Explanation
}

// Stats summarizes the memory corpus, per spec.md §4.5's stats operation.
type Stats struct {
	MemoryCount   int
	VectorCount   int
	LexicalCount  int
	ByType        map[store.MemoryType]int
	OldestCreated time.Time
	NewestCreated time.Time
}

// CleanupResult reports what Manager.CleanupStale removed.
type CleanupResult struct {
	RemovedIDs []string
}
