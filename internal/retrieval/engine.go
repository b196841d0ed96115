// Package retrieval implements octobrain's hybrid retriever (C4): dense
// vector search fused with BM25 lexical scoring, optional temporal decay,
// multi-query Reciprocal Rank Fusion, and optional reranking.
//
// The Engine is domain-agnostic: it ranks opaque ids. The memory manager
// and the knowledge pipeline each supply their own VectorStore/BM25Index
// views and a MetaProvider, and hydrate the returned ids into full
// records themselves.
package retrieval

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/octobrain/octobrain/internal/embed"
	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/store"
)

// maxParallelQueries bounds how many of a multi-query Retrieve's queries
// run their dense+lexical fetch concurrently.
const maxParallelQueries = 4

// Engine fuses C2 (dense) and C3 (lexical) candidates per spec.md §4.4.
type Engine struct {
	Vectors  store.VectorStore
	Lexical  store.BM25Index
	Embedder embed.Embedder
	Meta     MetaProvider

	// OverfetchMultiplier bounds how many extra lexical candidates are
	// fetched before applying Options.Filter, since BM25Index.Search has
	// no filter parameter of its own. Zero defaults to 4.
	OverfetchMultiplier int
}

func (e *Engine) overfetch() int {
	if e.OverfetchMultiplier > 0 {
		return e.OverfetchMultiplier
	}
	return 4
}

// Retrieve runs the full C4 algorithm across one or more queries and
// returns the final, filtered, limited, ranked result set.
func (e *Engine) Retrieve(ctx context.Context, queries []string, opts Options) ([]Result, error) {
	queries = normalizeQueries(queries)
	if len(queries) == 0 {
		return nil, ferrors.InvalidInputf("retrieve requires at least one non-empty query")
	}
	opts = fillDefaults(opts)

	perQuery := make([]rankedList, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallelQueries)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			rl, err := e.retrieveSingle(gctx, q, opts)
			if err != nil {
				return err
			}
			perQuery[i] = rl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ranked []Result
	if len(perQuery) == 1 {
		ranked = e.tieBreakSort(ctx, perQuery[0].results)
	} else {
		ranked = rrfFuse(perQuery, opts.RRFConstant)
	}

	if opts.UseReranker {
		if reranked, ok, err := e.tryRerank(ctx, queries[0], ranked, opts); err != nil {
			return nil, err
		} else if ok {
			ranked = reranked
		}
	}

	out := make([]Result, 0, opts.Limit)
	for _, r := range ranked {
		if r.Score < opts.MinRelevance {
			continue
		}
		out = append(out, r)
		if len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// retrieveSingle implements spec.md §4.4 steps 1-5 for one query: embed,
// fetch dense and lexical candidates, weighted-sum fuse, and decay.
func (e *Engine) retrieveSingle(ctx context.Context, query string, opts Options) (rankedList, error) {
	qvec, err := e.Embedder.Embed(ctx, query, embed.ModeQuery)
	if err != nil {
		return rankedList{}, ferrors.Wrap(ferrors.EmbedderUnavailable, err)
	}

	K := opts.CandidatePoolSize
	filter := opts.Filter

	var dense []store.VectorResult
	if e.Vectors != nil {
		dense, err = e.Vectors.FilteredSearch(ctx, qvec, K, filter)
		if err != nil {
			return rankedList{}, err
		}
	}

	var lexical []*store.BM25Result
	if e.Lexical != nil {
		raw, err := e.Lexical.Search(ctx, query, K*e.overfetch())
		if err != nil {
			return rankedList{}, err
		}
		lexical = make([]*store.BM25Result, 0, len(raw))
		for _, r := range raw {
			if !filter(r.DocID) {
				continue
			}
			lexical = append(lexical, r)
			if len(lexical) >= K {
				break
			}
		}
	}

	fused := WeightedSumFuse(dense, lexical, opts.DenseWeight, opts.LexicalWeight)

	var explanations map[string]*Explanation
	if opts.Explain {
		explanations = buildExplanations(dense, lexical)
	}

	results := make([]Result, 0, len(fused))
	for id, score := range fused {
		results = append(results, Result{ID: id, Score: score, Explain: explanations[id]})
	}

	if opts.DecayEnabled && e.Meta != nil && len(results) > 0 {
		if metas, err := e.Meta.Get(ctx, idsOf(results)); err == nil {
			now := time.Now()
			for i, r := range results {
				m := metas[r.ID]
				results[i].Score = ApplyDecay(r.Score, m.Importance, m.LastAccessedAt, now, opts.HalfLifeDays)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return rankedList{results: results}, nil
}

// tieBreakSort applies spec.md §4.4's tie-break order: higher score,
// then higher importance, then more recent updated_at, then id.
func (e *Engine) tieBreakSort(ctx context.Context, ranked []Result) []Result {
	if e.Meta == nil || len(ranked) == 0 {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
		return ranked
	}

	metas, err := e.Meta.Get(ctx, idsOf(ranked))
	if err != nil {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
		return ranked
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ma, mb := metas[a.ID], metas[b.ID]
		if ma.Importance != mb.Importance {
			return ma.Importance > mb.Importance
		}
		if !ma.UpdatedAt.Equal(mb.UpdatedAt) {
			return ma.UpdatedAt.After(mb.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// tryRerank applies spec.md §4.4 step 7: rerank the top
// min(2·limit, K) candidates, replacing their ordering with
// sigmoid-normalized rerank scores, leaving the tail untouched. Reports
// ok=false (not an error) when the Embedder doesn't implement Reranker.
func (e *Engine) tryRerank(ctx context.Context, query string, ranked []Result, opts Options) ([]Result, bool, error) {
	reranker, ok := e.Embedder.(Reranker)
	if !ok || e.Meta == nil {
		return nil, false, nil
	}

	topN := 2 * opts.Limit
	if opts.CandidatePoolSize < topN {
		topN = opts.CandidatePoolSize
	}
	if topN > len(ranked) {
		topN = len(ranked)
	}
	if topN == 0 {
		return ranked, true, nil
	}

	head, tail := ranked[:topN], ranked[topN:]

	metas, err := e.Meta.Get(ctx, idsOf(head))
	if err != nil {
		return nil, false, nil
	}
	candidates := make([]string, len(head))
	for i, r := range head {
		candidates[i] = metas[r.ID].Text
	}

	scores, err := reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, false, ferrors.Wrap(ferrors.EmbedderUnavailable, err)
	}

	reordered := make([]Result, len(head))
	for i, r := range head {
		s := 0.0
		if i < len(scores) {
			s = sigmoid(scores[i])
		}
		reordered[i] = Result{ID: r.ID, Score: s, Explain: r.Explain}
	}
	sort.SliceStable(reordered, func(i, j int) bool { return reordered[i].Score > reordered[j].Score })

	return append(reordered, tail...), true, nil
}

func idsOf(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func normalizeQueries(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if q == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
