package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/octobrain/octobrain/internal/config"
	"github.com/octobrain/octobrain/internal/embed"
	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/retrieval"
	"github.com/octobrain/octobrain/internal/store"
	"github.com/octobrain/octobrain/internal/workspace"
)

// Manager is octobrain's memory manager (C5): it owns memorize, remember,
// forget, update, and the listing/maintenance operations spec.md §4.5
// defines, composing the metadata, vector, and lexical stores with the
// shared hybrid retrieval engine (C4).
type Manager struct {
	Metadata store.MetadataStore
	Vectors  store.VectorStore
	Lexical  store.BM25Index
	Embedder embed.Embedder

	Decay   config.DecayConfig
	Cleanup config.CleanupConfig

	// Lock serializes writes to the memories table across processes
	// sharing a workspace (spec.md §5). Nil disables cross-process
	// locking, which every unit test does since each test's metadata
	// store is already process-private.
	Lock *workspace.TableLock

	retrieval *retrieval.Engine
}

// NewManager wires a Manager and its embedded retrieval engine.
func NewManager(metadata store.MetadataStore, vectors store.VectorStore, lexical store.BM25Index, embedder embed.Embedder, decay config.DecayConfig, cleanup config.CleanupConfig) *Manager {
	m := &Manager{
		Metadata: metadata,
		Vectors:  vectors,
		Lexical:  lexical,
		Embedder: embedder,
		Decay:    decay,
		Cleanup:  cleanup,
	}
	m.retrieval = &retrieval.Engine{
		Vectors:  vectors,
		Lexical:  lexical,
		Embedder: embedder,
		Meta:     m,
	}
	return m
}

// Get implements retrieval.MetaProvider by hydrating ItemMeta from the
// metadata store, letting the shared Engine decay and rerank by the
// memory's own importance, last-accessed time, and content.
func (m *Manager) Get(ctx context.Context, ids []string) (map[string]retrieval.ItemMeta, error) {
	out := make(map[string]retrieval.ItemMeta, len(ids))
	for _, id := range ids {
		mem, err := m.Metadata.GetMemory(ctx, id)
		if err != nil {
			continue // vector/lexical index can briefly lead metadata; skip, don't fail the batch
		}
		out[id] = retrieval.ItemMeta{
			Importance:     mem.Importance,
			LastAccessedAt: mem.LastAccessedAt,
			UpdatedAt:      mem.UpdatedAt,
			Text:           mem.Title + "\n\n" + mem.Content,
		}
	}
	return out, nil
}

// withWriteLock holds Lock (if set) for the duration of fn, giving the
// wrapped write exclusive access to the memories table across every
// process sharing this workspace.
func (m *Manager) withWriteLock(fn func() error) error {
	if m.Lock == nil {
		return fn()
	}
	if err := m.Lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = m.Lock.Unlock() }()
	return fn()
}

// Memorize validates, embeds, and stores a new memory, per spec.md §4.5.
func (m *Manager) Memorize(ctx context.Context, in MemorizeInput) (*store.Memory, error) {
	if in.Importance == 0 {
		in.Importance = DefaultImportance
	}
	if err := validateMemorize(&in); err != nil {
		return nil, err
	}

	now := time.Now()
	mem := &store.Memory{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Content:        in.Content,
		MemoryType:     in.MemoryType,
		Tags:           in.Tags,
		RelatedFiles:   in.RelatedFiles,
		Importance:     in.Importance,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		GitCommit:      in.GitCommit,
	}

	vec, err := m.Embedder.Embed(ctx, mem.Title+"\n\n"+mem.Content, embed.ModeDocument)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.EmbedderUnavailable, err)
	}
	mem.Embedding = vec

	err = m.withWriteLock(func() error {
		if err := m.Metadata.SaveMemory(ctx, mem); err != nil {
			return err
		}
		if err := m.Vectors.Upsert(ctx, []string{mem.ID}, [][]float32{vec}); err != nil {
			return err
		}
		return m.Lexical.Index(ctx, []*store.Document{{ID: mem.ID, Content: mem.Title + "\n\n" + mem.Content}})
	})
	if err != nil {
		return nil, err
	}

	return mem, nil
}

// Remember runs the hybrid retriever over queries and hydrates the
// ranked ids back into full Memory records, bumping access tracking on
// each returned memory per spec.md §4.4 step 8.
func (m *Manager) Remember(ctx context.Context, queries []string, opts RememberOptions) ([]RememberResult, error) {
	allow, err := m.allowSet(ctx, opts)
	if err != nil {
		return nil, err
	}

	ropts := retrieval.Options{
		Limit:        opts.Limit,
		MinRelevance: opts.MinRelevance,
		DecayEnabled: true,
		HalfLifeDays: m.Decay.HalfLifeDays,
		UseReranker:  opts.UseReranker,
		Explain:      opts.Explain,
		Filter: func(id string) bool {
			_, ok := allow[id]
			return ok
		},
	}
	if allow == nil {
		ropts.Filter = nil
	}

	ranked, err := m.retrieval.Retrieve(ctx, queries, ropts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]RememberResult, 0, len(ranked))
	for _, r := range ranked {
		mem, err := m.Metadata.GetMemory(ctx, r.ID)
		if err != nil {
			continue
		}
		_ = m.Metadata.TouchMemory(ctx, r.ID, now)
		results = append(results, RememberResult{Memory: mem, Relevance: r.Score, Explain: r.Explain})
	}
	return results, nil
}

// allowSet returns nil (unconstrained) when opts names no filter, or the
// set of memory ids matching Type/Tags/RelatedFile otherwise.
func (m *Manager) allowSet(ctx context.Context, opts RememberOptions) (map[string]struct{}, error) {
	if opts.Type == "" && len(opts.Tags) == 0 && opts.RelatedFile == "" {
		return nil, nil
	}

	filter := store.MemoryFilter{Type: opts.Type, Tags: opts.Tags, RelatedFile: opts.RelatedFile}
	memories, err := m.Metadata.ListMemories(ctx, filter)
	if err != nil {
		return nil, err
	}

	allow := make(map[string]struct{}, len(memories))
	for _, mem := range memories {
		allow[mem.ID] = struct{}{}
	}
	return allow, nil
}

// Forget permanently removes a memory and its relationships from every
// store it's indexed in.
func (m *Manager) Forget(ctx context.Context, id string) error {
	if _, err := m.Metadata.GetMemory(ctx, id); err != nil {
		return err
	}
	return m.withWriteLock(func() error {
		if err := m.Metadata.DeleteRelationshipsForMemory(ctx, id); err != nil {
			return err
		}
		if err := m.Vectors.Delete(ctx, []string{id}); err != nil {
			return err
		}
		if err := m.Lexical.Delete(ctx, []string{id}); err != nil {
			return err
		}
		return m.Metadata.DeleteMemory(ctx, id)
	})
}

// Update applies patch to an existing memory, re-embedding and
// re-indexing when Content changes.
func (m *Manager) Update(ctx context.Context, id string, patch UpdatePatch) (*store.Memory, error) {
	mem, err := m.Metadata.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if patch.Title != nil {
		mem.Title = *patch.Title
	}
	if patch.Content != nil {
		if len(*patch.Content) > store.MaxContentBytes {
			return nil, ferrors.InvalidInputf("content exceeds maximum size of %d bytes", store.MaxContentBytes)
		}
		mem.Content = *patch.Content
		contentChanged = true
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		mem.Tags = tags
	}
	if patch.RelatedFiles != nil {
		mem.RelatedFiles = *patch.RelatedFiles
	}
	if patch.Importance != nil {
		if *patch.Importance < 0 || *patch.Importance > 1 {
			return nil, ferrors.InvalidInputf("importance must be in [0,1], got %v", *patch.Importance)
		}
		mem.Importance = *patch.Importance
	}
	mem.UpdatedAt = time.Now()

	var vec []float32
	if contentChanged {
		var err error
		vec, err = m.Embedder.Embed(ctx, mem.Title+"\n\n"+mem.Content, embed.ModeDocument)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.EmbedderUnavailable, err)
		}
		mem.Embedding = vec
	}

	err = m.withWriteLock(func() error {
		if contentChanged {
			if err := m.Vectors.Upsert(ctx, []string{mem.ID}, [][]float32{vec}); err != nil {
				return err
			}
			if err := m.Lexical.Index(ctx, []*store.Document{{ID: mem.ID, Content: mem.Title + "\n\n" + mem.Content}}); err != nil {
				return err
			}
		}
		return m.Metadata.SaveMemory(ctx, mem)
	})
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// GetMemory returns a single memory by id and bumps its access tracking.
func (m *Manager) GetMemory(ctx context.Context, id string) (*store.Memory, error) {
	mem, err := m.Metadata.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = m.Metadata.TouchMemory(ctx, id, time.Now())
	return mem, nil
}

// Recent returns the most recently created memories.
func (m *Manager) Recent(ctx context.Context, limit int) ([]*store.Memory, error) {
	mems, err := m.Metadata.ListMemories(ctx, store.MemoryFilter{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(mems, func(i, j int) bool { return mems[i].CreatedAt.After(mems[j].CreatedAt) })
	if limit > 0 && len(mems) > limit {
		mems = mems[:limit]
	}
	return mems, nil
}

// ByType returns memories of the given type, most recent first.
func (m *Manager) ByType(ctx context.Context, t store.MemoryType, limit int) ([]*store.Memory, error) {
	return m.Metadata.ListMemories(ctx, store.MemoryFilter{Type: t, Limit: limit, SortByRecent: true})
}

// ByTags returns memories carrying all of tags, most recent first.
func (m *Manager) ByTags(ctx context.Context, tags []string, limit int) ([]*store.Memory, error) {
	return m.Metadata.ListMemories(ctx, store.MemoryFilter{Tags: tags, Limit: limit, SortByRecent: true})
}

// ForFiles returns memories related to any of files, deduplicated by id
// and sorted by most recently updated.
func (m *Manager) ForFiles(ctx context.Context, files []string, limit int) ([]*store.Memory, error) {
	seen := make(map[string]*store.Memory)
	for _, f := range files {
		matches, err := m.Metadata.ListMemories(ctx, store.MemoryFilter{RelatedFile: f})
		if err != nil {
			return nil, err
		}
		for _, mem := range matches {
			seen[mem.ID] = mem
		}
	}

	out := make([]*store.Memory, 0, len(seen))
	for _, mem := range seen {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// StatsSnapshot summarizes the memory corpus, per spec.md §4.5's stats
// operation.
func (m *Manager) StatsSnapshot(ctx context.Context) (*Stats, error) {
	all, err := m.Metadata.ListMemories(ctx, store.MemoryFilter{})
	if err != nil {
		return nil, err
	}

	s := &Stats{
		ByType: make(map[store.MemoryType]int),
	}
	s.MemoryCount = len(all)
	s.VectorCount = m.Vectors.Count()
	if stats := m.Lexical.Stats(); stats != nil {
		s.LexicalCount = stats.DocumentCount
	}
	for _, mem := range all {
		s.ByType[mem.MemoryType]++
		if s.OldestCreated.IsZero() || mem.CreatedAt.Before(s.OldestCreated) {
			s.OldestCreated = mem.CreatedAt
		}
		if mem.CreatedAt.After(s.NewestCreated) {
			s.NewestCreated = mem.CreatedAt
		}
	}
	return s, nil
}

// CleanupStale removes memories older than Cleanup.MaxAgeDays whose
// importance is below Cleanup.MinImportance, per spec.md §4.5.
func (m *Manager) CleanupStale(ctx context.Context) (*CleanupResult, error) {
	all, err := m.Metadata.ListMemories(ctx, store.MemoryFilter{})
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -m.Cleanup.MaxAgeDays)
	result := &CleanupResult{}
	for _, mem := range all {
		if mem.CreatedAt.Before(cutoff) && mem.Importance < m.Cleanup.MinImportance {
			if err := m.Forget(ctx, mem.ID); err != nil {
				continue
			}
			result.RemovedIDs = append(result.RemovedIDs, mem.ID)
		}
	}
	return result, nil
}

// ClearAll deletes every memory and relationship in the workspace.
func (m *Manager) ClearAll(ctx context.Context) error {
	all, err := m.Metadata.ListMemories(ctx, store.MemoryFilter{})
	if err != nil {
		return err
	}
	for _, mem := range all {
		if err := m.Forget(ctx, mem.ID); err != nil {
			return err
		}
	}
	return nil
}
