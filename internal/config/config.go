// Package config loads octobrain's TOML configuration, applying the
// three-tier precedence documented in SPEC_FULL.md: built-in defaults,
// then the user config file, then environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the root octobrain configuration, matching spec.md §6's
// recognized option list.
type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	Memory    MemoryConfig    `toml:"memory"`
	Knowledge KnowledgeConfig `toml:"knowledge"`
	Paths     PathsConfig     `toml:"paths"`
}

// EmbeddingConfig configures the embedder façade (C1).
type EmbeddingConfig struct {
	// Model is "provider:model", e.g. "ollama:nomic-embed-text".
	Model                string `toml:"model"`
	BatchSize            int    `toml:"batch_size"`
	MaxTokensPerBatch    int    `toml:"max_tokens_per_batch"`
	PoolSize             int    `toml:"pool_size"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// SearchConfig configures the hybrid retriever (C4).
type SearchConfig struct {
	SimilarityThreshold float64        `toml:"similarity_threshold"`
	MaxResults          int            `toml:"max_results"`
	CandidatePoolSize   int            `toml:"candidate_pool_size"`
	RRFConstant         int            `toml:"rrf_constant"`
	Hybrid              HybridWeights  `toml:"hybrid"`
	Reranker            RerankerConfig `toml:"reranker"`
}

// HybridWeights are the fusion weights spec.md §4.4 step 4 defines.
type HybridWeights struct {
	Alpha float64 `toml:"alpha"` // dense weight
	Beta  float64 `toml:"beta"`  // lexical weight
}

// RerankerConfig configures optional cross-encoder reranking.
type RerankerConfig struct {
	Enabled          bool   `toml:"enabled"`
	Model            string `toml:"model"`
	TopKCandidates   int    `toml:"top_k_candidates"`
	FinalTopK        int    `toml:"final_top_k"`
}

// MemoryConfig configures the memory manager (C5) and decay (C4).
type MemoryConfig struct {
	Decay   DecayConfig   `toml:"decay"`
	Cleanup CleanupConfig `toml:"cleanup"`
}

// DecayConfig configures temporal decay, spec.md §4.4 step 5.
type DecayConfig struct {
	HalfLifeDays float64 `toml:"half_life_days"`
}

// CleanupConfig configures spec.md §4.5 cleanup(policy) defaults.
type CleanupConfig struct {
	MinImportance float64 `toml:"min_importance"`
	MaxAgeDays    int     `toml:"max_age_days"`
}

// KnowledgeConfig configures the ingestion pipeline (C7).
type KnowledgeConfig struct {
	TTLSeconds    int `toml:"ttl_seconds"`
	ChunkTokens   int `toml:"chunk_tokens"`
	ChunkOverlap  int `toml:"chunk_overlap"`
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	MaxRedirects  int `toml:"max_redirects"`
}

// PathsConfig holds data-location settings.
type PathsConfig struct {
	// DataDir is loaded from data_dir and OCTOBRAIN_PATHS_DATA_DIR, but
	// workspace resolution does not read it: internal/workspace always
	// places the root under XDG_DATA_HOME (or ~/.local/share/octobrain).
	DataDir string `toml:"data_dir"`
}

// Default returns the built-in defaults, matching spec.md §6 exactly.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:             "ollama:nomic-embed-text",
			BatchSize:         32,
			MaxTokensPerBatch: 100000,
			PoolSize:          8,
			TimeoutSeconds:    60,
		},
		Search: SearchConfig{
			SimilarityThreshold: 0.3,
			MaxResults:          50,
			CandidatePoolSize:   50,
			RRFConstant:         60,
			Hybrid: HybridWeights{
				Alpha: 0.7,
				Beta:  0.3,
			},
			Reranker: RerankerConfig{
				Enabled:        false,
				TopKCandidates: 50,
				FinalTopK:      10,
			},
		},
		Memory: MemoryConfig{
			Decay: DecayConfig{
				HalfLifeDays: 90,
			},
			Cleanup: CleanupConfig{
				MinImportance: 0.2,
				MaxAgeDays:    180,
			},
		},
		Knowledge: KnowledgeConfig{
			TTLSeconds:          86400,
			ChunkTokens:         512,
			ChunkOverlap:        64,
			FetchTimeoutSeconds: 30,
			MaxRedirects:        5,
		},
	}
}

// Load resolves configuration with three-tier precedence:
//  1. Default() built-in defaults.
//  2. configPath (or ~/.config/octobrain/config.toml if configPath is "").
//  3. OCTOBRAIN_* environment variables (highest precedence).
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = UserConfigPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := cfg.mergeFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeFromFile parses a TOML file and merges non-zero values over cfg.
func (c *Config) mergeFromFile(path string) error {
	var parsed Config
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return err
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c. Booleans are an
// exception (reranker.enabled) — TOML decoding leaves unset booleans at
// their zero value, so a file that omits the key never overrides a
// default of false, and a file that sets it true always wins.
func (c *Config) mergeWith(other *Config) {
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.MaxTokensPerBatch != 0 {
		c.Embedding.MaxTokensPerBatch = other.Embedding.MaxTokensPerBatch
	}
	if other.Embedding.PoolSize != 0 {
		c.Embedding.PoolSize = other.Embedding.PoolSize
	}
	if other.Embedding.TimeoutSeconds != 0 {
		c.Embedding.TimeoutSeconds = other.Embedding.TimeoutSeconds
	}

	if other.Search.SimilarityThreshold != 0 {
		c.Search.SimilarityThreshold = other.Search.SimilarityThreshold
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.CandidatePoolSize != 0 {
		c.Search.CandidatePoolSize = other.Search.CandidatePoolSize
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.Hybrid.Alpha != 0 {
		c.Search.Hybrid.Alpha = other.Search.Hybrid.Alpha
	}
	if other.Search.Hybrid.Beta != 0 {
		c.Search.Hybrid.Beta = other.Search.Hybrid.Beta
	}
	if other.Search.Reranker.Enabled {
		c.Search.Reranker.Enabled = true
	}
	if other.Search.Reranker.Model != "" {
		c.Search.Reranker.Model = other.Search.Reranker.Model
	}
	if other.Search.Reranker.TopKCandidates != 0 {
		c.Search.Reranker.TopKCandidates = other.Search.Reranker.TopKCandidates
	}
	if other.Search.Reranker.FinalTopK != 0 {
		c.Search.Reranker.FinalTopK = other.Search.Reranker.FinalTopK
	}

	if other.Memory.Decay.HalfLifeDays != 0 {
		c.Memory.Decay.HalfLifeDays = other.Memory.Decay.HalfLifeDays
	}
	if other.Memory.Cleanup.MinImportance != 0 {
		c.Memory.Cleanup.MinImportance = other.Memory.Cleanup.MinImportance
	}
	if other.Memory.Cleanup.MaxAgeDays != 0 {
		c.Memory.Cleanup.MaxAgeDays = other.Memory.Cleanup.MaxAgeDays
	}

	if other.Knowledge.TTLSeconds != 0 {
		c.Knowledge.TTLSeconds = other.Knowledge.TTLSeconds
	}
	if other.Knowledge.ChunkTokens != 0 {
		c.Knowledge.ChunkTokens = other.Knowledge.ChunkTokens
	}
	if other.Knowledge.ChunkOverlap != 0 {
		c.Knowledge.ChunkOverlap = other.Knowledge.ChunkOverlap
	}
	if other.Knowledge.FetchTimeoutSeconds != 0 {
		c.Knowledge.FetchTimeoutSeconds = other.Knowledge.FetchTimeoutSeconds
	}
	if other.Knowledge.MaxRedirects != 0 {
		c.Knowledge.MaxRedirects = other.Knowledge.MaxRedirects
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
}

// envOverride describes one OCTOBRAIN_* environment variable and how to
// apply it to a Config.
type envOverride struct {
	name  string
	apply func(c *Config, value string) error
}

var envOverrides = []envOverride{
	{"OCTOBRAIN_EMBEDDING_MODEL", func(c *Config, v string) error { c.Embedding.Model = v; return nil }},
	{"OCTOBRAIN_EMBEDDING_BATCH_SIZE", intOverride(func(c *Config) *int { return &c.Embedding.BatchSize })},
	{"OCTOBRAIN_SEARCH_SIMILARITY_THRESHOLD", floatOverride(func(c *Config) *float64 { return &c.Search.SimilarityThreshold })},
	{"OCTOBRAIN_SEARCH_MAX_RESULTS", intOverride(func(c *Config) *int { return &c.Search.MaxResults })},
	{"OCTOBRAIN_SEARCH_HYBRID_ALPHA", floatOverride(func(c *Config) *float64 { return &c.Search.Hybrid.Alpha })},
	{"OCTOBRAIN_SEARCH_HYBRID_BETA", floatOverride(func(c *Config) *float64 { return &c.Search.Hybrid.Beta })},
	{"OCTOBRAIN_SEARCH_RERANKER_ENABLED", boolOverride(func(c *Config) *bool { return &c.Search.Reranker.Enabled })},
	{"OCTOBRAIN_MEMORY_DECAY_HALF_LIFE_DAYS", floatOverride(func(c *Config) *float64 { return &c.Memory.Decay.HalfLifeDays })},
	{"OCTOBRAIN_KNOWLEDGE_TTL_SECONDS", intOverride(func(c *Config) *int { return &c.Knowledge.TTLSeconds })},
	{"OCTOBRAIN_PATHS_DATA_DIR", func(c *Config, v string) error { c.Paths.DataDir = v; return nil }},
}

func intOverride(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatOverride(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolOverride(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// applyEnvOverrides applies OCTOBRAIN_* environment variables, the
// highest-precedence tier. Malformed values are ignored rather than
// failing Load, matching the teacher's tolerant env-override behavior.
func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && strings.TrimSpace(v) != "" {
			_ = o.apply(c, v)
		}
	}
}

// Validate rejects configurations that would make the core misbehave.
func (c *Config) Validate() error {
	if c.Search.Hybrid.Alpha < 0 || c.Search.Hybrid.Beta < 0 {
		return fmt.Errorf("search.hybrid weights must be non-negative")
	}
	if c.Search.Hybrid.Alpha+c.Search.Hybrid.Beta == 0 {
		return fmt.Errorf("search.hybrid.alpha and search.hybrid.beta cannot both be zero")
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive")
	}
	if c.Memory.Decay.HalfLifeDays <= 0 {
		return fmt.Errorf("memory.decay.half_life_days must be positive")
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkTokens {
		return fmt.Errorf("knowledge.chunk_overlap must be smaller than knowledge.chunk_tokens")
	}
	return nil
}

// WriteTOML writes c to path, creating parent directories as needed.
func (c *Config) WriteTOML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// UserConfigDir returns ~/.config/octobrain (honoring XDG_CONFIG_HOME).
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "octobrain")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "octobrain-config")
	}
	return filepath.Join(home, ".config", "octobrain")
}

// UserConfigPath returns ~/.config/octobrain/config.toml.
func UserConfigPath() string {
	return filepath.Join(UserConfigDir(), "config.toml")
}

// UserConfigExists reports whether the user config file is present.
func UserConfigExists() bool {
	_, err := os.Stat(UserConfigPath())
	return err == nil
}
