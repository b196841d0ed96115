package retrieval

import (
	"context"
	"math"
)

// Reranker is the optional cross-encoder-style reranking operation
// surfaced by C1's embedder façade (spec.md §4.1). When an Engine's
// Embedder also implements Reranker, Retrieve can request a rerank pass
// over the top candidates; when it doesn't, reranking is skipped rather
// than failing the whole retrieval (it's advisory, not required).
type Reranker interface {
	// Rerank scores candidates against query. The returned slice has the
	// same length and order as candidates; scores are NOT assumed to be
	// normalized, so the caller sigmoid-normalizes them.
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
