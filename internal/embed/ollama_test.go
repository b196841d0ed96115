package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTagsHandler(models ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := make([]ollamaModelInfo, len(models))
		for i, m := range models {
			infos[i] = ollamaModelInfo{Name: m}
		}
		_ = json.NewEncoder(w).Encode(ollamaModelListResponse{Models: infos})
	}
}

func newEmbedHandler(dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var count int
		switch v := req.Input.(type) {
		case string:
			count = 1
		case []any:
			count = len(v)
		}
		if count == 0 {
			count = 1
		}

		embeddings := make([][]float64, count)
		for i := range embeddings {
			vec := make([]float64, dims)
			for j := range vec {
				vec[j] = 0.1
			}
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	}
}

func TestNewOllamaEmbedder_DiscoversModelAndDimensions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", newEmbedHandler(768))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL

	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, "nomic-embed-text:latest", embedder.ModelName())
	assert.Equal(t, 768, embedder.Dimensions())
}

func TestNewOllamaEmbedder_FallsBackToAlternateModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("mxbai-embed-large:latest"))
	mux.HandleFunc("/api/embed", newEmbedHandler(1024))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	cfg.Model = "nomic-embed-text"

	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, "mxbai-embed-large:latest", embedder.ModelName())
}

func TestNewOllamaEmbedder_NoModelAvailable_ReturnsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("llama3:latest"))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL

	_, err := NewOllamaEmbedder(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewOllamaEmbedder_SkipHealthCheck_UsesConfiguredValues(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.Host = "http://localhost:59999"
	cfg.Model = "custom-model"
	cfg.Dimensions = 512
	cfg.SkipHealthCheck = true

	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 512, embedder.Dimensions())
}

func TestOllamaEmbedder_Embed_EmptyText_ReturnsZeroVector(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 768
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "   ", ModeDocument)
	require.NoError(t, err)
	assert.Len(t, vec, 768)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}

func TestOllamaEmbedder_Embed_ReturnsNormalizedVector(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", newEmbedHandler(8))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "hello world", ModeDocument)
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.InDelta(t, 1.0, vectorMagnitude(vec), 0.001)
}

func TestOllamaEmbedder_EmbedBatch_ChunksAcrossBatchSize(t *testing.T) {
	var callCount int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		callCount++
		newEmbedHandler(8)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	cfg.BatchSize = 2
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	callCount = 0 // reset after the health-check's dimension-detection call
	texts := []string{"a", "b", "c", "d", "e"}
	results, err := embedder.EmbedBatch(context.Background(), texts, ModeDocument)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 3, callCount, "5 texts at batch size 2 should take 3 requests")
}

func TestOllamaEmbedder_EmbedBatch_PreservesEmptyTextPositions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", newEmbedHandler(8))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	results, err := embedder.EmbedBatch(context.Background(), []string{"a", "", "b"}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, v := range results[1] {
		assert.Equal(t, float32(0), v)
	}
}

func TestOllamaEmbedder_Embed_AfterClose_ReturnsError(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 8
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, embedder.Close())

	_, err = embedder.Embed(context.Background(), "text", ModeDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestOllamaEmbedder_DoEmbedWithRetry_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		newEmbedHandler(8)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 8
	cfg.MaxRetries = 5
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "retry me", ModeDocument)
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestOllamaEmbedder_Available_ReportsModelPresence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", newEmbedHandler(8))
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	assert.True(t, embedder.Available(context.Background()))
}

func TestOllamaEmbedder_Available_FalseAfterClose(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 8
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, embedder.Close())

	assert.False(t, embedder.Available(context.Background()))
}

func TestOllamaEmbedder_Close_IsIdempotent(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 8
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)

	assert.NoError(t, embedder.Close())
	assert.NoError(t, embedder.Close())
}

func TestOllamaEmbedder_Embed_ContextCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		newEmbedHandler(8)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 8
	cfg.MaxRetries = 1
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = embedder.Embed(ctx, "slow request", ModeDocument)
	require.Error(t, err)
}

func TestOllamaEmbedder_Embed_PrefixesNomicModelByMode(t *testing.T) {
	var gotInput string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("nomic-embed-text:latest"))
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if s, ok := req.Input.(string); ok {
			gotInput = s
		}
		newEmbedHandler(8)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	_, err = embedder.Embed(context.Background(), "hello world", ModeDocument)
	require.NoError(t, err)
	assert.Equal(t, "search_document: hello world", gotInput)

	_, err = embedder.Embed(context.Background(), "hello world", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, "search_query: hello world", gotInput)
}

func TestOllamaEmbedder_Embed_NonNomicModelGetsNoPrefix(t *testing.T) {
	var gotInput string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", newTagsHandler("mxbai-embed-large:latest"))
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if s, ok := req.Input.(string); ok {
			gotInput = s
		}
		newEmbedHandler(8)(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = server.URL
	cfg.Model = "mxbai-embed-large"
	embedder, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	_, err = embedder.Embed(context.Background(), "hello world", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, "hello world", gotInput)
}

func TestDefaultOllamaConfig_Defaults(t *testing.T) {
	cfg := DefaultOllamaConfig()
	assert.Equal(t, DefaultOllamaHost, cfg.Host)
	assert.Equal(t, DefaultOllamaModel, cfg.Model)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}
