package retrieval

import (
	"sort"

	"github.com/octobrain/octobrain/internal/store"
)

// DefaultDenseWeight and DefaultLexicalWeight are the per-query weighted-sum
// fusion weights (alpha, beta) spec.md §4.4 step 4 fixes at 0.7/0.3.
const (
	DefaultDenseWeight   = 0.7
	DefaultLexicalWeight = 0.3
)

// DefaultRRFConstant is the multi-query Reciprocal Rank Fusion smoothing
// constant spec.md §4.4 step 6 fixes at 60 (the same value used industry-
// wide by hybrid search systems).
const DefaultRRFConstant = 60

// WeightedSumFuse combines one query's dense and lexical candidate lists
// into a single per-id score map, per spec.md §4.4 steps 2-4: dense scores
// arrive from the vector store already scaled to [0,1] (step 2 happens at
// the store boundary, not here), lexical scores are used as returned
// (already normalized by the BM25 index), and the two are combined by
// weighted sum over the union of ids — a side missing from one list
// contributes zero.
func WeightedSumFuse(dense []store.VectorResult, lexical []*store.BM25Result, alpha, beta float64) map[string]float64 {
	scores := make(map[string]float64, len(dense)+len(lexical))
	for _, d := range dense {
		scores[d.ID] += alpha * float64(d.Score)
	}
	for _, l := range lexical {
		scores[l.DocID] += beta * l.Score
	}
	return scores
}

// rankedList is one query's fused (and possibly decayed) candidates,
// sorted by score descending.
type rankedList struct {
	results []Result
}

// rrfFuse combines several queries' ranked lists into one via Reciprocal
// Rank Fusion, per spec.md §4.4 step 6: RRF(id) = Σ_q 1/(k + rank_q(id)).
// The id's displayed relevance is the best per-query fused score across
// the queries that surfaced it, not the (unitless) RRF value itself; RRF
// only determines ordering.
func rrfFuse(lists []rankedList, k int) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	rrfScore := make(map[string]float64)
	bestScore := make(map[string]float64)
	bestExplain := make(map[string]*Explanation)

	for _, list := range lists {
		for rank, r := range list.results {
			rrfScore[r.ID] += 1.0 / float64(k+rank+1)
			if cur, ok := bestScore[r.ID]; !ok || r.Score > cur {
				bestScore[r.ID] = r.Score
				bestExplain[r.ID] = r.Explain
			}
		}
	}

	out := make([]Result, 0, len(bestScore))
	for id, score := range bestScore {
		out = append(out, Result{ID: id, Score: score, Explain: bestExplain[id]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if rrfScore[out[i].ID] != rrfScore[out[j].ID] {
			return rrfScore[out[i].ID] > rrfScore[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})

	return out
}
