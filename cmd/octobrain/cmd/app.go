package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/octobrain/octobrain/internal/config"
	"github.com/octobrain/octobrain/internal/embed"
	"github.com/octobrain/octobrain/internal/graph"
	"github.com/octobrain/octobrain/internal/knowledge"
	"github.com/octobrain/octobrain/internal/memory"
	"github.com/octobrain/octobrain/internal/store"
	"github.com/octobrain/octobrain/internal/workspace"
)

const (
	memVectorsFile       = "vectors.gob"
	knowledgeVectorsFile = "vectors.gob"
)

// app bundles the components a CLI command needs: the memory manager,
// the relationship graph, and the knowledge pipeline, all wired to one
// workspace's on-disk state.
type app struct {
	cfg       *config.Config
	ws        *workspace.Workspace
	metadata  *store.SQLiteStore
	memVec    store.VectorStore
	knowVec   store.VectorStore
	embedder  embed.Embedder

	Manager   *memory.Manager
	Graph     *graph.Graph
	Knowledge *knowledge.Pipeline
}

// buildApp loads configuration, resolves the workspace for the current
// directory, and wires the memory, graph, and knowledge components over
// it. Every CLI command that touches memories, relationships, or
// knowledge goes through this.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	provider, model := splitProviderModel(cfg.Embedding.Model)
	embedder, err := embed.NewEmbedder(ctx, provider, model)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Open(".", embedder.Dimensions(), cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}

	metadata, err := store.NewSQLiteStore(ws.MetadataDBPath())
	if err != nil {
		return nil, err
	}

	memVec, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return nil, err
	}
	_ = memVec.Load(filepath.Join(ws.MemoriesDir(), memVectorsFile))

	knowVec, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return nil, err
	}
	_ = knowVec.Load(filepath.Join(ws.KnowledgeChunksDir(), knowledgeVectorsFile))

	memLexical := store.NewMemoryBM25Index(store.DefaultBM25Config())
	knowLexical := store.NewMemoryBM25Index(store.DefaultBM25Config())

	if err := rehydrateMemoryLexicon(ctx, metadata, memLexical); err != nil {
		return nil, err
	}

	mgr := memory.NewManager(metadata, memVec, memLexical, embedder, cfg.Memory.Decay, cfg.Memory.Cleanup)
	mgr.Lock = workspace.NewTableLock(ws.Root, "memories")
	g := graph.NewGraph(metadata, memVec)
	kp := knowledge.NewPipeline(metadata, knowVec, knowLexical, embedder,
		cfg.Knowledge.TTLSeconds, cfg.Knowledge.ChunkTokens, cfg.Knowledge.ChunkOverlap)
	kp.Lock = workspace.NewTableLock(ws.Root, "knowledge")

	return &app{
		cfg: cfg, ws: ws, metadata: metadata, memVec: memVec, knowVec: knowVec, embedder: embedder,
		Manager: mgr, Graph: g, Knowledge: kp,
	}, nil
}

// rehydrateMemoryLexicon rebuilds the in-memory BM25 index for memories
// from the metadata store, since the lexical index itself carries no
// on-disk persistence. Knowledge-chunk lexicon rehydration across a
// process restart is a known gap (no store method currently lists every
// knowledge source URL); a long-running `octobrain serve` process keeps
// it warm from the point each source is first indexed.
func rehydrateMemoryLexicon(ctx context.Context, metadata store.MetadataStore, lexical store.BM25Index) error {
	mems, err := metadata.ListMemories(ctx, store.MemoryFilter{})
	if err != nil {
		return err
	}
	if len(mems) == 0 {
		return nil
	}
	docs := make([]*store.Document, len(mems))
	for i, m := range mems {
		docs[i] = &store.Document{ID: m.ID, Content: m.Title + "\n\n" + m.Content}
	}
	return lexical.Index(ctx, docs)
}

// Close persists vector state and releases resources. Commands defer
// this immediately after a successful buildApp.
func (a *app) Close() error {
	_ = a.memVec.Save(filepath.Join(a.ws.MemoriesDir(), memVectorsFile))
	_ = a.knowVec.Save(filepath.Join(a.ws.KnowledgeChunksDir(), knowledgeVectorsFile))
	_ = a.embedder.Close()
	return a.metadata.Close()
}

// splitProviderModel parses a config Model string of the form
// "provider:model" (e.g. "ollama:nomic-embed-text") into its parts.
func splitProviderModel(spec string) (embed.ProviderType, string) {
	provider, model, found := strings.Cut(spec, ":")
	if !found {
		return embed.ProviderOllama, spec
	}
	return embed.ProviderType(provider), model
}
