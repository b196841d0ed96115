package retrieval

import "github.com/octobrain/octobrain/internal/store"

// buildExplanations ranks dense by score and lexical by score (both lists
// already arrive sorted by their respective stores) and records each id's
// per-side score, 1-based rank, and matched lexical terms.
func buildExplanations(dense []store.VectorResult, lexical []*store.BM25Result) map[string]*Explanation {
	out := make(map[string]*Explanation, len(dense)+len(lexical))

	get := func(id string) *Explanation {
		e, ok := out[id]
		if !ok {
			e = &Explanation{}
			out[id] = e
		}
		return e
	}

	for i, d := range dense {
		e := get(d.ID)
		e.DenseScore = float64(d.Score)
		e.DenseRank = i + 1
	}
	for i, l := range lexical {
		e := get(l.DocID)
		e.LexicalScore = l.Score
		e.LexicalRank = i + 1
		e.MatchedTerms = l.MatchedTerms
	}
	return out
}
