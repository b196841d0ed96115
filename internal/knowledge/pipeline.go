package knowledge

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/octobrain/octobrain/internal/embed"
	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/store"
	"github.com/octobrain/octobrain/internal/workspace"
)

// Pipeline drives the normalize/fetch/extract/chunk/embed sequence for
// a single URL, per spec.md §4.7.
type Pipeline struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Lexical  store.BM25Index
	Embedder embed.Embedder
	Fetcher  *Fetcher

	TTLSeconds   int
	ChunkTokens  int
	ChunkOverlap int

	// Lock serializes writes to the knowledge tables across processes
	// sharing a workspace (spec.md §5). Nil disables cross-process
	// locking.
	Lock *workspace.TableLock
}

// withWriteLock holds Lock (if set) for the duration of fn.
func (p *Pipeline) withWriteLock(fn func() error) error {
	if p.Lock == nil {
		return fn()
	}
	if err := p.Lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = p.Lock.Unlock() }()
	return fn()
}

func NewPipeline(metadata store.MetadataStore, vectors store.VectorStore, lexical store.BM25Index, embedder embed.Embedder, ttlSeconds, chunkTokens, chunkOverlap int) *Pipeline {
	return &Pipeline{
		Metadata: metadata, Vectors: vectors, Lexical: lexical, Embedder: embedder, Fetcher: &Fetcher{},
		TTLSeconds: ttlSeconds, ChunkTokens: chunkTokens, ChunkOverlap: chunkOverlap,
	}
}

func (p *Pipeline) isStale(src *store.KnowledgeSource, now time.Time) bool {
	ttl := src.TTLSeconds
	if ttl <= 0 {
		ttl = p.TTLSeconds
	}
	return now.Sub(src.FetchedAt) > time.Duration(ttl)*time.Second
}

// Index ensures url is indexed and fresh. If an existing KnowledgeSource
// is present and not stale, it returns unchanged without refetching.
func (p *Pipeline) Index(ctx context.Context, rawURL string) (*IndexResult, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	existing, _ := p.Metadata.GetKnowledgeSource(ctx, url)
	if existing != nil && !p.isStale(existing, now) {
		return &IndexResult{URL: url, ChunkCount: existing.ChunkCount, Reindexed: false}, nil
	}

	page, err := p.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(page.html)
	if err != nil {
		return nil, ferrors.New(ferrors.FetchFailed, "extracting text from "+url, err)
	}
	hash := ContentHash(text)

	if existing != nil && existing.ContentHash == hash {
		existing.FetchedAt = page.fetchedAt
		existing.IndexedAt = now
		existing.ETag = page.etag
		if err := p.withWriteLock(func() error { return p.Metadata.SaveKnowledgeSource(ctx, existing) }); err != nil {
			return nil, err
		}
		return &IndexResult{URL: url, ChunkCount: existing.ChunkCount, Reindexed: false}, nil
	}

	pieces := Chunk(text, p.ChunkTokens, p.ChunkOverlap)

	chunks := make([]*store.KnowledgeChunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &store.KnowledgeChunk{ID: uuid.NewString(), SourceURL: url, Ordinal: i, Text: piece}
		texts[i] = piece
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = p.Embedder.EmbedBatch(ctx, texts, embed.ModeDocument)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.EmbedderUnavailable, err)
		}
	}
	for i, vec := range vectors {
		chunks[i].Embedding = vec
	}

	err = p.withWriteLock(func() error {
		// Replace-all: delete any chunks from a prior index of this source
		// before inserting the new set, so ordinals stay contiguous and
		// stale vectors never linger.
		if existing != nil {
			prior, err := p.Metadata.GetKnowledgeChunks(ctx, url)
			if err != nil {
				return err
			}
			if len(prior) > 0 {
				ids := make([]string, len(prior))
				for i, c := range prior {
					ids[i] = c.ID
				}
				if err := p.Vectors.Delete(ctx, ids); err != nil {
					return err
				}
				if err := p.Lexical.Delete(ctx, ids); err != nil {
					return err
				}
			}
		}

		if err := p.Metadata.ReplaceKnowledgeChunks(ctx, url, chunks); err != nil {
			return err
		}

		if len(chunks) > 0 {
			ids := make([]string, len(chunks))
			vecs := make([][]float32, len(chunks))
			docs := make([]*store.Document, len(chunks))
			for i, c := range chunks {
				ids[i] = c.ID
				vecs[i] = c.Embedding
				docs[i] = &store.Document{ID: c.ID, Content: c.Text}
			}
			if err := p.Vectors.Upsert(ctx, ids, vecs); err != nil {
				return err
			}
			if err := p.Lexical.Index(ctx, docs); err != nil {
				return err
			}
		}

		src := &store.KnowledgeSource{
			URL: url, ContentHash: hash, FetchedAt: page.fetchedAt, IndexedAt: now,
			TTLSeconds: p.TTLSeconds, ChunkCount: len(chunks), ETag: page.etag,
		}
		return p.Metadata.SaveKnowledgeSource(ctx, src)
	})
	if err != nil {
		return nil, err
	}

	return &IndexResult{URL: url, ChunkCount: len(chunks), Reindexed: true}, nil
}

// Delete removes a knowledge source and its chunks atomically (as seen
// by callers; the metadata store's ReplaceKnowledgeChunks/DeleteKnowledgeSource
// pair is the actual transactional unit).
func (p *Pipeline) Delete(ctx context.Context, rawURL string) error {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	chunks, err := p.Metadata.GetKnowledgeChunks(ctx, url)
	if err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return p.withWriteLock(func() error {
		if err := p.Vectors.Delete(ctx, ids); err != nil {
			return err
		}
		if err := p.Lexical.Delete(ctx, ids); err != nil {
			return err
		}
		if err := p.Metadata.ReplaceKnowledgeChunks(ctx, url, nil); err != nil {
			return err
		}
		return p.Metadata.DeleteKnowledgeSource(ctx, url)
	})
}
