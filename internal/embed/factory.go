package embed

import (
	"context"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama HTTP API for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings requiring no network
	// access or model download. Used only when selected explicitly.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for the given provider, wrapped in an
// LRU query cache unless disabled.
//
// The OCTOBRAIN_EMBEDDER environment variable overrides provider selection:
//   - "ollama": use OllamaEmbedder
//   - "static": use StaticEmbedder
//
// Set OCTOBRAIN_EMBED_CACHE=false to disable the query cache.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if envProvider := os.Getenv("OCTOBRAIN_EMBEDDER"); envProvider != "" {
		provider = ProviderType(strings.ToLower(envProvider))
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderOllama:
		embedder, err = newOllamaWithFallback(ctx, model)
	default:
		embedder, err = newOllamaWithFallback(ctx, model)
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("OCTOBRAIN_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllamaWithFallback builds an Ollama embedder from config plus
// environment overrides. It does not fall back to static on failure —
// callers that want offline operation select ProviderStatic explicitly.
func newOllamaWithFallback(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" {
		cfg.Model = model
	}
	if host := os.Getenv("OCTOBRAIN_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("OCTOBRAIN_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("OCTOBRAIN_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	return NewOllamaEmbedder(ctx, cfg)
}

// ParseProvider converts a string to a ProviderType, defaulting to Ollama
// for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	case "ollama":
		return ProviderOllama
	default:
		return ProviderOllama
	}
}

// String returns the string representation of the provider.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderStatic)}
}

// IsValidProvider reports whether s names a valid provider.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo describes a constructed embedder.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, unwrapping a CachedEmbedder to classify
// the underlying provider.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
