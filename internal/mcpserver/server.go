// Package mcpserver exposes octobrain's memory manager, relationship
// graph, and knowledge pipeline as MCP tools: a thin mapping from tool
// calls to the memorize/remember/forget/auto_link/memory_graph/
// knowledge_search operations, per spec.md §4.8.
package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/octobrain/octobrain/internal/config"
	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/graph"
	"github.com/octobrain/octobrain/internal/knowledge"
	"github.com/octobrain/octobrain/internal/memory"
	"github.com/octobrain/octobrain/internal/retrieval"
	"github.com/octobrain/octobrain/internal/store"
	"github.com/octobrain/octobrain/pkg/version"
)

// Server is the MCP server for octobrain. It bridges AI clients (Claude
// Code, Cursor) with the memory, graph, and knowledge components.
type Server struct {
	mcp       *mcp.Server
	memories  *memory.Manager
	graph     *graph.Graph
	knowledge *knowledge.Pipeline
	config    *config.Config
	logger    *slog.Logger

	mu sync.RWMutex
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server wired to the memory manager, graph,
// and knowledge pipeline for a single workspace.
func NewServer(memories *memory.Manager, g *graph.Graph, kp *knowledge.Pipeline, cfg *config.Config) (*Server, error) {
	if memories == nil {
		return nil, errors.New("memory manager is required")
	}
	if g == nil {
		return nil, errors.New("memory graph is required")
	}
	if kp == nil {
		return nil, errors.New("knowledge pipeline is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		memories:  memories,
		graph:     g,
		knowledge: kp,
		config:    cfg,
		logger:    slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "octobrain",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "octobrain", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "memorize", Description: "Store a new memory: a title, content body, type, tags, and related files."},
		{Name: "remember", Description: "Hybrid semantic + lexical search over stored memories, with optional type/tag/file filters."},
		{Name: "forget", Description: "Delete a memory by id, or by query when confirm=true."},
		{Name: "auto_link", Description: "Create related_to edges from a memory to its nearest neighbors above a similarity threshold."},
		{Name: "memory_graph", Description: "Traverse the relationship graph from a memory up to a hop depth."},
		{Name: "knowledge_search", Description: "Search ingested web knowledge, optionally scoped to one source URL."},
	}
}

// CallTool invokes a tool by name with raw arguments, for callers outside
// the MCP transport (tests, CLI bridging).
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "memorize":
		return s.callMemorize(ctx, args)
	case "remember":
		return s.callRemember(ctx, args)
	case "forget":
		return s.callForget(ctx, args)
	case "auto_link":
		return s.callAutoLink(ctx, args)
	case "memory_graph":
		return s.callMemoryGraph(ctx, args)
	case "knowledge_search":
		return s.callKnowledgeSearch(ctx, args)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) callMemorize(ctx context.Context, args map[string]any) (any, error) {
	input := MemorizeInput{}
	if v, ok := args["title"].(string); ok {
		input.Title = v
	}
	if v, ok := args["content"].(string); ok {
		input.Content = v
	}
	if v, ok := args["memory_type"].(string); ok {
		input.MemoryType = v
	}
	_, out, err := s.mcpMemorizeHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) callRemember(ctx context.Context, args map[string]any) (any, error) {
	input := RememberInput{}
	if v, ok := args["queries"].([]interface{}); ok {
		for _, q := range v {
			if str, ok := q.(string); ok {
				input.Queries = append(input.Queries, str)
			}
		}
	}
	_, out, err := s.mcpRememberHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) callForget(ctx context.Context, args map[string]any) (any, error) {
	input := ForgetInput{}
	if v, ok := args["id"].(string); ok {
		input.ID = v
	}
	if v, ok := args["query"].(string); ok {
		input.Query = v
	}
	if v, ok := args["confirm"].(bool); ok {
		input.Confirm = v
	}
	_, out, err := s.mcpForgetHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) callAutoLink(ctx context.Context, args map[string]any) (any, error) {
	input := AutoLinkInput{}
	if v, ok := args["memory_id"].(string); ok {
		input.MemoryID = v
	}
	_, out, err := s.mcpAutoLinkHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) callMemoryGraph(ctx context.Context, args map[string]any) (any, error) {
	input := MemoryGraphInput{}
	if v, ok := args["memory_id"].(string); ok {
		input.MemoryID = v
	}
	_, out, err := s.mcpMemoryGraphHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) callKnowledgeSearch(ctx context.Context, args map[string]any) (any, error) {
	input := KnowledgeSearchInput{}
	if v, ok := args["query"].(string); ok {
		input.Query = v
	}
	if v, ok := args["url"].(string); ok {
		input.URL = v
	}
	_, out, err := s.mcpKnowledgeSearchHandler(ctx, nil, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// registerTools registers all six tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memorize",
		Description: "Store a new memory: a title, content body, type, tags, and related files.",
	}, s.mcpMemorizeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remember",
		Description: "Hybrid semantic + lexical search over stored memories, with optional type/tag/file filters.",
	}, s.mcpRememberHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget",
		Description: "Delete a memory by id, or by query when confirm=true.",
	}, s.mcpForgetHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "auto_link",
		Description: "Create related_to edges from a memory to its nearest neighbors above a similarity threshold.",
	}, s.mcpAutoLinkHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_graph",
		Description: "Traverse the relationship graph from a memory up to a hop depth.",
	}, s.mcpMemoryGraphHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "knowledge_search",
		Description: "Search ingested web knowledge, optionally scoped to one source URL.",
	}, s.mcpKnowledgeSearchHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 6))
}

func (s *Server) mcpMemorizeHandler(ctx context.Context, _ *mcp.CallToolRequest, input MemorizeInput) (
	*mcp.CallToolResult, MemorizeOutput, error,
) {
	requestID := generateRequestID()
	start := time.Now()

	mt := store.MemoryType(input.MemoryType)
	if mt == "" {
		mt = store.MemoryTypeCode
	}

	mem, err := s.memories.Memorize(ctx, memory.MemorizeInput{
		Title:        input.Title,
		Content:      input.Content,
		MemoryType:   mt,
		Tags:         input.Tags,
		RelatedFiles: input.RelatedFiles,
		Importance:   input.Importance,
		GitCommit:    input.GitCommit,
	})
	if err != nil {
		s.logger.Error("memorize failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, MemorizeOutput{}, MapError(err)
	}

	s.logger.Info("memorize completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("memory_id", mem.ID))

	return nil, MemorizeOutput{OK: true, Memory: toMemoryOutput(mem)}, nil
}

func (s *Server) mcpRememberHandler(ctx context.Context, _ *mcp.CallToolRequest, input RememberInput) (
	*mcp.CallToolResult, RememberOutput, error,
) {
	if len(input.Queries) == 0 {
		return nil, RememberOutput{}, NewInvalidParamsError("queries must contain at least one non-empty string")
	}

	opts := memory.RememberOptions{
		Type:         store.MemoryType(input.MemoryType),
		Tags:         input.Tags,
		RelatedFile:  input.RelatedFile,
		Limit:        input.Limit,
		MinRelevance: input.MinRelevance,
		Explain:      input.Explain,
	}

	results, err := s.memories.Remember(ctx, input.Queries, opts)
	if err != nil {
		return nil, RememberOutput{}, MapError(err)
	}

	out := RememberOutput{OK: true, Results: make([]RememberResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, RememberResultOutput{
			Memory: toMemoryOutput(r.Memory), Relevance: r.Relevance, Explain: toExplanationOutput(r.Explain),
		})
	}
	return nil, out, nil
}

func (s *Server) mcpForgetHandler(ctx context.Context, _ *mcp.CallToolRequest, input ForgetInput) (
	*mcp.CallToolResult, ForgetOutput, error,
) {
	if input.ID == "" && input.Query == "" {
		return nil, ForgetOutput{}, NewInvalidParamsError("either id or query is required")
	}

	if input.ID != "" {
		if err := s.memories.Forget(ctx, input.ID); err != nil {
			return nil, ForgetOutput{}, MapError(err)
		}
		return nil, ForgetOutput{OK: true, DeletedIDs: []string{input.ID}}, nil
	}

	if !input.Confirm {
		return nil, ForgetOutput{}, MapError(ferrors.New(ferrors.Ambiguous, "forgetting by query requires confirm=true", nil))
	}

	results, err := s.memories.Remember(ctx, []string{input.Query}, memory.RememberOptions{})
	if err != nil {
		return nil, ForgetOutput{}, MapError(err)
	}

	deleted := make([]string, 0, len(results))
	for _, r := range results {
		if err := s.memories.Forget(ctx, r.Memory.ID); err != nil {
			return nil, ForgetOutput{}, MapError(err)
		}
		deleted = append(deleted, r.Memory.ID)
	}
	return nil, ForgetOutput{OK: true, DeletedIDs: deleted}, nil
}

func (s *Server) mcpAutoLinkHandler(ctx context.Context, _ *mcp.CallToolRequest, input AutoLinkInput) (
	*mcp.CallToolResult, AutoLinkOutput, error,
) {
	if input.MemoryID == "" {
		return nil, AutoLinkOutput{}, NewInvalidParamsError("memory_id is required")
	}

	links, err := s.graph.AutoLink(ctx, input.MemoryID, input.Threshold, input.MaxLinks)
	if err != nil {
		return nil, AutoLinkOutput{}, MapError(err)
	}

	out := AutoLinkOutput{OK: true, Links: make([]LinkOutput, 0, len(links))}
	for _, l := range links {
		out.Links = append(out.Links, LinkOutput{TargetID: l.TargetID, Strength: l.Strength})
	}
	return nil, out, nil
}

func (s *Server) mcpMemoryGraphHandler(ctx context.Context, _ *mcp.CallToolRequest, input MemoryGraphInput) (
	*mcp.CallToolResult, MemoryGraphOutput, error,
) {
	if input.MemoryID == "" {
		return nil, MemoryGraphOutput{}, NewInvalidParamsError("memory_id is required")
	}

	depth := input.Depth
	if depth == 0 {
		depth = graph.DefaultDepth
	}

	hops, err := s.graph.Related(ctx, input.MemoryID, depth)
	if err != nil {
		return nil, MemoryGraphOutput{}, MapError(err)
	}

	out := MemoryGraphOutput{OK: true, Hops: make([]HopOutput, 0, len(hops))}
	for _, h := range hops {
		out.Hops = append(out.Hops, HopOutput{ID: h.ID, MinHop: h.MinHop, AccumulatedStrength: h.AccumulatedStrength})
	}
	return nil, out, nil
}

func (s *Server) mcpKnowledgeSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input KnowledgeSearchInput) (
	*mcp.CallToolResult, KnowledgeSearchOutput, error,
) {
	if input.Query == "" {
		return nil, KnowledgeSearchOutput{}, NewInvalidParamsError("query is required")
	}

	hits, err := s.knowledge.Search(ctx, input.Query, knowledge.SearchOptions{URL: input.URL, Limit: input.Limit, Explain: input.Explain})
	if err != nil {
		return nil, KnowledgeSearchOutput{}, MapError(err)
	}

	out := KnowledgeSearchOutput{OK: true, Hits: make([]KnowledgeHitOutput, 0, len(hits))}
	for _, h := range hits {
		out.Hits = append(out.Hits, KnowledgeHitOutput{
			ChunkID: h.ChunkID, SourceURL: h.SourceURL, Ordinal: h.Ordinal, Text: h.Text, Relevance: h.Relevance,
			Explain: toExplanationOutput(h.Explain),
		})
	}
	return nil, out, nil
}

// toExplanationOutput converts a retrieval.Explanation to its wire form,
// passing nil through unchanged.
func toExplanationOutput(e *retrieval.Explanation) *ExplanationOutput {
	if e == nil {
		return nil
	}
	return &ExplanationOutput{
		DenseScore: e.DenseScore, DenseRank: e.DenseRank,
		LexicalScore: e.LexicalScore, LexicalRank: e.LexicalRank,
		MatchedTerms: e.MatchedTerms,
	}
}

// Serve starts the server with the given transport. Only stdio is
// implemented; octobrain runs as a single local process per workspace.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
