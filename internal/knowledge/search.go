package knowledge

import (
	"context"

	"github.com/octobrain/octobrain/internal/retrieval"
	"github.com/octobrain/octobrain/internal/store"
)

// chunkMeta implements retrieval.MetaProvider over the knowledge chunk
// store: knowledge has no importance signal and is never decayed, so
// every chunk reports Importance 1 and an arbitrary fixed timestamp.
type chunkMeta struct {
	metadata store.MetadataStore
	chunks   map[string]*store.KnowledgeChunk
}

func (c *chunkMeta) Get(ctx context.Context, ids []string) (map[string]retrieval.ItemMeta, error) {
	out := make(map[string]retrieval.ItemMeta, len(ids))
	for _, id := range ids {
		chunk, ok := c.chunks[id]
		if !ok {
			fetched, err := c.metadata.GetKnowledgeChunk(ctx, id)
			if err != nil {
				continue
			}
			chunk = fetched
		}
		out[id] = retrieval.ItemMeta{Importance: 1, Text: chunk.Text}
	}
	return out, nil
}

// Search implements knowledge_search: a scoped search restricted to one
// source when url is set, otherwise a global search across all chunks.
// Decay is always disabled and importance is fixed at 1, per spec.md
// §4.7.
func (p *Pipeline) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error) {
	if opts.URL != "" {
		if _, err := p.Index(ctx, opts.URL); err != nil {
			return nil, err
		}
	}

	normalizedURL := ""
	if opts.URL != "" {
		u, err := NormalizeURL(opts.URL)
		if err != nil {
			return nil, err
		}
		normalizedURL = u
	}

	meta := &chunkMeta{metadata: p.Metadata, chunks: map[string]*store.KnowledgeChunk{}}
	engine := &retrieval.Engine{Vectors: p.Vectors, Lexical: p.Lexical, Embedder: p.Embedder, Meta: meta}

	ropts := retrieval.Options{
		Limit:        opts.Limit,
		MinRelevance: opts.MinRelevance,
		DecayEnabled: false,
		Explain:      opts.Explain,
	}

	if normalizedURL != "" {
		chunks, err := p.Metadata.GetKnowledgeChunks(ctx, normalizedURL)
		if err != nil {
			return nil, err
		}
		allow := make(map[string]struct{}, len(chunks))
		for _, c := range chunks {
			allow[c.ID] = struct{}{}
			meta.chunks[c.ID] = c
		}
		ropts.Filter = func(id string) bool { _, ok := allow[id]; return ok }
	}

	ranked, err := engine.Retrieve(ctx, []string{query}, ropts)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(ranked))
	for _, r := range ranked {
		chunk, ok := meta.chunks[r.ID]
		if !ok {
			fetched, err := p.Metadata.GetKnowledgeChunk(ctx, r.ID)
			if err != nil {
				continue
			}
			chunk = fetched
		}
		hits = append(hits, SearchHit{
			ChunkID: chunk.ID, SourceURL: chunk.SourceURL, Ordinal: chunk.Ordinal,
			Text: chunk.Text, Relevance: r.Score, Explain: r.Explain,
		})
	}
	return hits, nil
}
