// Package store provides the on-disk persistence layer for octobrain:
// a dense vector index (C2), a lexical BM25 index (C3), and a sqlite
// metadata store holding memories, relationships, and knowledge state.
package store

import (
	"context"
	"fmt"
	"time"
)

// MemoryType is the closed set of memory categories spec.md §3 defines.
type MemoryType string

const (
	MemoryTypeCode          MemoryType = "code"
	MemoryTypeArchitecture  MemoryType = "architecture"
	MemoryTypeBugFix        MemoryType = "bug_fix"
	MemoryTypeFeature       MemoryType = "feature"
	MemoryTypeDocumentation MemoryType = "documentation"
	MemoryTypeUserPref      MemoryType = "user_preference"
	MemoryTypeDecision      MemoryType = "decision"
	MemoryTypeLearning      MemoryType = "learning"
	MemoryTypeConfiguration MemoryType = "configuration"
	MemoryTypeTesting       MemoryType = "testing"
	MemoryTypePerformance   MemoryType = "performance"
	MemoryTypeSecurity      MemoryType = "security"
	MemoryTypeInsight       MemoryType = "insight"
)

// ValidMemoryTypes is the closed set, used for validation.
var ValidMemoryTypes = map[MemoryType]struct{}{
	MemoryTypeCode: {}, MemoryTypeArchitecture: {}, MemoryTypeBugFix: {},
	MemoryTypeFeature: {}, MemoryTypeDocumentation: {}, MemoryTypeUserPref: {},
	MemoryTypeDecision: {}, MemoryTypeLearning: {}, MemoryTypeConfiguration: {},
	MemoryTypeTesting: {}, MemoryTypePerformance: {}, MemoryTypeSecurity: {},
	MemoryTypeInsight: {},
}

// MaxContentBytes is the content size ceiling spec.md §3 defines (64KiB).
const MaxContentBytes = 64 * 1024

// MaxTags is the per-memory tag count ceiling spec.md §3 defines.
const MaxTags = 32

// MaxTagLength is the per-tag character ceiling spec.md §3 defines.
const MaxTagLength = 64

// Memory is a single stored unit of knowledge about a codebase or
// project, per spec.md §3.
type Memory struct {
	ID              string
	Title           string
	Content         string
	MemoryType      MemoryType
	Tags            []string
	RelatedFiles    []string
	Importance      float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int64
	GitCommit       string
	Embedding       []float32
}

// RelationshipType is the closed set spec.md §3 defines for graph edges.
type RelationshipType string

const (
	RelationshipDependsOn   RelationshipType = "depends_on"
	RelationshipRelatedTo   RelationshipType = "related_to"
	RelationshipSupersedes  RelationshipType = "supersedes"
	RelationshipContradicts RelationshipType = "contradicts"
	RelationshipDerivedFrom RelationshipType = "derived_from"
	RelationshipReferences  RelationshipType = "references"
)

// ValidRelationshipTypes is the closed set, used for validation.
var ValidRelationshipTypes = map[RelationshipType]struct{}{
	RelationshipDependsOn: {}, RelationshipRelatedTo: {}, RelationshipSupersedes: {},
	RelationshipContradicts: {}, RelationshipDerivedFrom: {}, RelationshipReferences: {},
}

// Relationship is a typed, weighted edge between two memories. The
// triple (SourceID, TargetID, Type) is the primary key: relating the
// same pair again with the same type replaces the strength in place.
type Relationship struct {
	SourceID         string
	TargetID         string
	RelationshipType RelationshipType
	Strength         float64
	CreatedAt        time.Time
}

// KnowledgeSource is a fetched, normalized URL tracked for re-indexing
// and staleness checks, per spec.md §3.
type KnowledgeSource struct {
	URL         string
	ContentHash string // hex-encoded SHA-256 of the last extracted text
	FetchedAt   time.Time
	IndexedAt   time.Time
	TTLSeconds  int
	ChunkCount  int
	ETag        string
}

// KnowledgeChunk is one sliding-window slice of a knowledge source's
// extracted text, per spec.md §3 and §4.7.
type KnowledgeChunk struct {
	ID        string
	SourceURL string
	Ordinal   int
	Text      string
	Embedding []float32
}

// ErrDimensionMismatch indicates a vector's dimension doesn't match the
// store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorResult is a single k-NN search hit: an ID and a similarity
// score in [0,1] (1 is identical). Callers join stored columns for the
// ID against the metadata store.
type VectorResult struct {
	ID    string
	Score float32
}

// VectorStoreConfig configures a dense HNSW index.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" (default) or "l2"
	M              int
	EfSearch       int
	// RebuildGrowthFactor and RebuildRowThreshold implement spec.md
	// §4.2's rebuild trigger: rebuild when rows since last build exceed
	// the smaller of (rows at last build × RebuildGrowthFactor) or
	// RebuildRowThreshold.
	RebuildGrowthFactor float64
	RebuildRowThreshold int
	// OverfetchMultiplier bounds how many extra candidates a filtered
	// k-NN search fetches before applying the predicate (default 4).
	OverfetchMultiplier int
}

// DefaultVectorStoreConfig returns spec.md-compliant defaults for a
// vector store of the given embedding dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:          dimensions,
		Metric:              "cos",
		M:                   16,
		EfSearch:            64,
		RebuildGrowthFactor: 1.5,
		RebuildRowThreshold: 10000,
		OverfetchMultiplier: 4,
	}
}

// VectorStore is a columnar on-disk vector table keyed by ID, per
// spec.md §4.2 (C2). Upsert replaces atomically by ID.
type VectorStore interface {
	// Upsert inserts or atomically replaces vectors by ID.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest neighbors to query by cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)

	// FilteredSearch returns up to k neighbors satisfying keep, over-fetching
	// by the store's configured multiplier before filtering.
	FilteredSearch(ctx context.Context, query []float32, k int, keep func(id string) bool) ([]VectorResult, error)

	// Scan applies keep to every stored vector (full scan, no ANN index
	// involved) and scores matches against query. Used when the ANN graph
	// is empty or a caller needs an exhaustive filtered pass.
	Scan(ctx context.Context, query []float32, keep func(id string) bool) ([]VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// DeleteWhere removes all vectors whose ID satisfies match.
	DeleteWhere(ctx context.Context, match func(id string) bool) error

	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// Document is a unit of text indexed for lexical (BM25) search.
type Document struct {
	ID      string
	Content string
}

// BM25Result is a single lexical search hit.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats describes the current state of a BM25Index.
type IndexStats struct {
	DocumentCount      int
	TermCount          int
	AvgDocLength       float64
	WritesSinceBuild   int
	BufferedDocuments  int
}

// BM25Config configures the lexical index, per spec.md §4.3.
type BM25Config struct {
	K1 float64
	B  float64
	// MinTokenLength discards tokens shorter than this (default 2).
	MinTokenLength int
	// RebuildFraction and RebuildWriteThreshold implement the lazy
	// rebuild trigger: rebuild when writes-since-build exceed the
	// smaller of (corpus size × RebuildFraction) or RebuildWriteThreshold.
	RebuildFraction      float64
	RebuildWriteThreshold int
}

// DefaultBM25Config returns the exact constants spec.md §4.3 specifies.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:                    1.2,
		B:                     0.75,
		MinTokenLength:        2,
		RebuildFraction:       0.05,
		RebuildWriteThreshold: 128,
	}
}

// BM25Index provides lexical search over Documents, per spec.md §4.3
// (C3). Octobrain's tokenizer applies no stemming and no stopword
// removal — only lowercasing and Unicode word-boundary segmentation.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Close() error
}

// MetadataStore persists Memory, Relationship, KnowledgeSource, and
// KnowledgeChunk state in sqlite. It is the system of record; the
// vector and lexical indexes are derived, rebuildable caches over it.
type MetadataStore interface {
	// Memory operations (C5)
	SaveMemory(ctx context.Context, m *Memory) error
	GetMemory(ctx context.Context, id string) (*Memory, error)
	DeleteMemory(ctx context.Context, id string) error
	ListMemories(ctx context.Context, filter MemoryFilter) ([]*Memory, error)
	TouchMemory(ctx context.Context, id string, accessedAt time.Time) error
	CountMemories(ctx context.Context) (int, error)

	// Relationship operations (C6)
	SaveRelationship(ctx context.Context, r *Relationship) error
	GetRelationships(ctx context.Context, memoryID string) ([]*Relationship, error)
	DeleteRelationship(ctx context.Context, sourceID, targetID string, relType RelationshipType) error
	DeleteRelationshipsForMemory(ctx context.Context, memoryID string) error

	// Knowledge source/chunk operations (C7)
	SaveKnowledgeSource(ctx context.Context, s *KnowledgeSource) error
	GetKnowledgeSource(ctx context.Context, url string) (*KnowledgeSource, error)
	DeleteKnowledgeSource(ctx context.Context, url string) error
	ReplaceKnowledgeChunks(ctx context.Context, url string, chunks []*KnowledgeChunk) error
	GetKnowledgeChunks(ctx context.Context, url string) ([]*KnowledgeChunk, error)
	GetKnowledgeChunk(ctx context.Context, id string) (*KnowledgeChunk, error)

	// State (small key-value scratch space, e.g. BM25 rebuild counters)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// MemoryFilter narrows ListMemories. Zero-value fields are unconstrained.
type MemoryFilter struct {
	Type         MemoryType
	Tags         []string
	RelatedFile  string
	Limit        int
	SortByRecent bool
}
