package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobrain/octobrain/internal/embed"
	"github.com/octobrain/octobrain/internal/store"
)

// fakeVectorStore returns a fixed, pre-scripted result list regardless of
// the query vector, letting tests control dense candidates directly.
type fakeVectorStore struct {
	results []store.VectorResult
}

func (f *fakeVectorStore) Upsert(context.Context, []string, [][]float32) error { return nil }
func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]store.VectorResult, error) {
	return f.results, nil
}
func (f *fakeVectorStore) FilteredSearch(_ context.Context, _ []float32, k int, keep func(string) bool) ([]store.VectorResult, error) {
	out := make([]store.VectorResult, 0, len(f.results))
	for _, r := range f.results {
		if keep == nil || keep(r.ID) {
			out = append(out, r)
		}
		if len(out) >= k {
			break
		}
	}
	return out, nil
}
func (f *fakeVectorStore) Scan(context.Context, []float32, func(string) bool) ([]store.VectorResult, error) {
	return f.results, nil
}
func (f *fakeVectorStore) Delete(context.Context, []string) error                { return nil }
func (f *fakeVectorStore) DeleteWhere(context.Context, func(string) bool) error   { return nil }
func (f *fakeVectorStore) Contains(string) bool                                  { return true }
func (f *fakeVectorStore) Count() int                                           { return len(f.results) }
func (f *fakeVectorStore) Save(string) error                                    { return nil }
func (f *fakeVectorStore) Load(string) error                                    { return nil }
func (f *fakeVectorStore) Close() error                                         { return nil }

type fakeBM25Index struct {
	results []*store.BM25Result
}

func (f *fakeBM25Index) Index(context.Context, []*store.Document) error { return nil }
func (f *fakeBM25Index) Search(_ context.Context, _ string, limit int) ([]*store.BM25Result, error) {
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}
func (f *fakeBM25Index) Delete(context.Context, []string) error { return nil }
func (f *fakeBM25Index) AllIDs() ([]string, error)              { return nil, nil }
func (f *fakeBM25Index) Stats() *store.IndexStats                { return &store.IndexStats{} }
func (f *fakeBM25Index) Close() error                            { return nil }

// fakeEmbedder returns a constant vector; tests care about fusion, not
// embedding quality.
type fakeEmbedder struct {
	rerankScores map[string]float64
}

func (f *fakeEmbedder) Embed(context.Context, string, embed.Mode) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (f *fakeEmbedder) EmbedBatch(context.Context, []string, embed.Mode) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) Dimensions() int                      { return 2 }
func (f *fakeEmbedder) ModelName() string                    { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool       { return true }
func (f *fakeEmbedder) Close() error                         { return nil }
func (f *fakeEmbedder) Rerank(_ context.Context, _ string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = f.rerankScores[c]
	}
	return scores, nil
}

var _ Reranker = (*fakeEmbedder)(nil)

type fakeMeta struct {
	metas map[string]ItemMeta
}

func (f *fakeMeta) Get(_ context.Context, ids []string) (map[string]ItemMeta, error) {
	out := make(map[string]ItemMeta, len(ids))
	for _, id := range ids {
		out[id] = f.metas[id]
	}
	return out, nil
}

func TestEngine_Retrieve_NoQueries_ReturnsInvalidInput(t *testing.T) {
	e := &Engine{Embedder: &fakeEmbedder{}}
	_, err := e.Retrieve(context.Background(), []string{"", ""}, Options{})
	require.Error(t, err)
}

func TestEngine_Retrieve_FusesDenseAndLexical(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.2}}},
		Lexical:  &fakeBM25Index{results: []*store.BM25Result{{DocID: "b", Score: 1.0}}},
		Embedder: &fakeEmbedder{},
	}

	results, err := e.Retrieve(context.Background(), []string{"query"}, Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.ID] = r.Score
	}
	assert.InDelta(t, DefaultDenseWeight*0.9, byID["a"], 0.0001)
	assert.InDelta(t, DefaultDenseWeight*0.2+DefaultLexicalWeight*1.0, byID["b"], 0.0001)
}

func TestEngine_Retrieve_MinRelevance_DropsLowScores(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 1.0}, {ID: "b", Score: -1.0}}},
		Embedder: &fakeEmbedder{},
	}

	results, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 10, MinRelevance: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestEngine_Retrieve_Limit_Truncates(t *testing.T) {
	e := &Engine{
		Vectors: &fakeVectorStore{results: []store.VectorResult{
			{ID: "a", Score: 1.0}, {ID: "b", Score: 0.9}, {ID: "c", Score: 0.8},
		}},
		Embedder: &fakeEmbedder{},
	}

	results, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestEngine_Retrieve_EmbedderFailure_ReturnsEmbedderUnavailable(t *testing.T) {
	e := &Engine{Embedder: &erroringEmbedder{}}
	_, err := e.Retrieve(context.Background(), []string{"q"}, Options{})
	require.Error(t, err)
}

// erroringEmbedder implements embed.Embedder directly (not by embedding
// fakeEmbedder) so it does NOT implement Reranker.
type erroringEmbedder struct{}

func (erroringEmbedder) Embed(context.Context, string, embed.Mode) ([]float32, error) {
	return nil, errors.New("ollama unreachable")
}
func (erroringEmbedder) EmbedBatch(context.Context, []string, embed.Mode) ([][]float32, error) {
	return nil, nil
}
func (erroringEmbedder) Dimensions() int                { return 2 }
func (erroringEmbedder) ModelName() string              { return "erroring" }
func (erroringEmbedder) Available(context.Context) bool { return false }
func (erroringEmbedder) Close() error                   { return nil }

// plainEmbedder implements embed.Embedder only, with no Rerank method, to
// exercise the "configured embedder has no reranker" path.
type plainEmbedder struct{}

func (plainEmbedder) Embed(context.Context, string, embed.Mode) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (plainEmbedder) EmbedBatch(context.Context, []string, embed.Mode) ([][]float32, error) {
	return nil, nil
}
func (plainEmbedder) Dimensions() int                { return 2 }
func (plainEmbedder) ModelName() string              { return "plain" }
func (plainEmbedder) Available(context.Context) bool { return true }
func (plainEmbedder) Close() error                   { return nil }

func TestEngine_Retrieve_MultiQuery_UsesRRFOrdering(t *testing.T) {
	store1 := &fakeVectorStore{results: []store.VectorResult{{ID: "shared", Score: 0.5}, {ID: "only1", Score: 0.9}}}
	e := &Engine{Vectors: store1, Embedder: &fakeEmbedder{}}

	results, err := e.Retrieve(context.Background(), []string{"query one", "query two"}, Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestEngine_Retrieve_Decay_LowersStaleMemoryScore(t *testing.T) {
	now := time.Now()
	e := &Engine{
		Vectors: &fakeVectorStore{results: []store.VectorResult{{ID: "fresh", Score: 1.0}, {ID: "stale", Score: 1.0}}},
		Embedder: &fakeEmbedder{},
		Meta: &fakeMeta{metas: map[string]ItemMeta{
			"fresh": {Importance: 0, LastAccessedAt: now},
			"stale": {Importance: 0, LastAccessedAt: now.AddDate(0, 0, -180)},
		}},
	}

	results, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 10, DecayEnabled: true})
	require.NoError(t, err)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.ID] = r.Score
	}
	assert.Greater(t, byID["fresh"], byID["stale"])
}

func TestEngine_Retrieve_Rerank_ReordersByRerankScore(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 1.0}, {ID: "b", Score: 0.9}}},
		Embedder: &fakeEmbedder{rerankScores: map[string]float64{"text-a": -5, "text-b": 5}},
		Meta: &fakeMeta{metas: map[string]ItemMeta{
			"a": {Text: "text-a"},
			"b": {Text: "text-b"},
		}},
	}

	results, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 10, UseReranker: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID, "reranker should promote the candidate it scores higher")
}

func TestEngine_Retrieve_NoReranker_SkipsSilently(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 1.0}}},
		Embedder: plainEmbedder{},
	}

	_, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 10, UseReranker: true})
	require.NoError(t, err)
}

func TestEngine_Retrieve_Explain_PopulatesPerSourceBreakdown(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.2}}},
		Lexical:  &fakeBM25Index{results: []*store.BM25Result{{DocID: "b", Score: 1.0, MatchedTerms: []string{"cache"}}}},
		Embedder: &fakeEmbedder{},
	}

	results, err := e.Retrieve(context.Background(), []string{"cache"}, Options{Limit: 10, Explain: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}

	require.NotNil(t, byID["a"].Explain)
	assert.Equal(t, 1, byID["a"].Explain.DenseRank)
	assert.Equal(t, 0, byID["a"].Explain.LexicalRank, "a never appeared on the lexical side")

	require.NotNil(t, byID["b"].Explain)
	assert.Equal(t, 2, byID["b"].Explain.DenseRank)
	assert.Equal(t, 1, byID["b"].Explain.LexicalRank)
	assert.Equal(t, []string{"cache"}, byID["b"].Explain.MatchedTerms)
}

func TestEngine_Retrieve_NoExplain_LeavesFieldNil(t *testing.T) {
	e := &Engine{
		Vectors:  &fakeVectorStore{results: []store.VectorResult{{ID: "a", Score: 0.9}}},
		Embedder: &fakeEmbedder{},
	}

	results, err := e.Retrieve(context.Background(), []string{"q"}, Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Explain)
}
