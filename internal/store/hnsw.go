package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore using coder/hnsw, a pure-Go HNSW
// implementation — no cgo, matching octobrain's single-static-binary
// goal. One HNSWStore instance backs each of the two vector tables
// spec.md §4.2 names: memory embeddings and knowledge-chunk embeddings.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap  map[string]uint64
	keyMap map[uint64]string
	values map[string][]float32 // normalized vectors, for full scans
	nextKey uint64

	rowsAtLastBuild int
	closed          bool
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	Values  map[string][]float32
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore creates a new HNSW-backed vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	if cfg.OverfetchMultiplier == 0 {
		cfg.OverfetchMultiplier = 4
	}
	if cfg.RebuildGrowthFactor == 0 {
		cfg.RebuildGrowthFactor = 1.5
	}
	if cfg.RebuildRowThreshold == 0 {
		cfg.RebuildRowThreshold = 10000
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		values: make(map[string][]float32),
	}, nil
}

// Upsert inserts vectors, atomically replacing any existing vector for
// the same ID via lazy deletion (the old graph node is orphaned rather
// than removed, avoiding a coder/hnsw edge case when the last node in a
// graph is deleted).
func (s *HNSWStore) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		s.values[id] = vec
	}

	s.maybeRebuildLocked()
	return nil
}

// maybeRebuildLocked re-adds all live vectors to a fresh graph once
// growth since the last build exceeds the smaller of
// rowsAtLastBuild×RebuildGrowthFactor or RebuildRowThreshold, shedding
// orphaned (lazily-deleted) nodes that would otherwise accumulate.
// Caller must hold s.mu.
func (s *HNSWStore) maybeRebuildLocked() {
	live := len(s.idMap)
	byGrowth := int(float64(s.rowsAtLastBuild) * s.config.RebuildGrowthFactor)
	threshold := s.config.RebuildRowThreshold
	if s.rowsAtLastBuild > 0 && byGrowth < threshold {
		threshold = byGrowth
	}
	if threshold <= 0 {
		threshold = s.config.RebuildRowThreshold
	}
	if live < s.rowsAtLastBuild+threshold && s.graph.Len() < threshold+live {
		return
	}

	fresh := hnsw.NewGraph[uint64]()
	fresh.Distance = s.graph.Distance
	fresh.M = s.config.M
	fresh.EfSearch = s.config.EfSearch
	fresh.Ml = s.graph.Ml

	newIDMap := make(map[string]uint64, live)
	newKeyMap := make(map[uint64]string, live)
	var nextKey uint64
	for id, vec := range s.values {
		if _, ok := s.idMap[id]; !ok {
			continue // stale value left by a deleted ID
		}
		fresh.Add(hnsw.MakeNode(nextKey, vec))
		newIDMap[id] = nextKey
		newKeyMap[nextKey] = id
		nextKey++
	}

	s.graph = fresh
	s.idMap = newIDMap
	s.keyMap = newKeyMap
	s.nextKey = nextKey
	s.rowsAtLastBuild = live
}

func (s *HNSWStore) prepareQuery(query []float32) ([]float32, error) {
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(q)
	}
	return q, nil
}

// Search returns the k nearest neighbors to query.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	q, err := s.prepareQuery(query)
	if err != nil {
		return nil, err
	}
	if s.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	nodes := s.graph.Search(q, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, VectorResult{ID: id, Score: distanceToScore(distance, s.config.Metric)})
	}
	return results, nil
}

// FilteredSearch returns up to k neighbors satisfying keep. It
// over-fetches by config.OverfetchMultiplier before filtering, and
// falls back to a full scan if the over-fetched page doesn't yield k
// matches (bounded ANN graphs can't guarantee a filtered k-NN in one
// pass).
func (s *HNSWStore) FilteredSearch(ctx context.Context, query []float32, k int, keep func(id string) bool) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	q, err := s.prepareQuery(query)
	if err != nil {
		return nil, err
	}
	if s.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	fetchK := k * s.config.OverfetchMultiplier
	if fetchK < k {
		fetchK = k
	}
	nodes := s.graph.Search(q, fetchK)

	results := make([]VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists || (keep != nil && !keep(id)) {
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, VectorResult{ID: id, Score: distanceToScore(distance, s.config.Metric)})
		if len(results) >= k {
			return results, nil
		}
	}

	if len(results) < k {
		return s.scanLocked(q, keep, k)
	}
	return results, nil
}

// Scan applies keep to every stored vector, scoring matches against
// query. Used for an exhaustive filtered pass when the ANN graph
// can't satisfy a filtered k-NN, or when a caller needs every match.
func (s *HNSWStore) Scan(ctx context.Context, query []float32, keep func(id string) bool) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	q, err := s.prepareQuery(query)
	if err != nil {
		return nil, err
	}
	return s.scanLocked(q, keep, 0)
}

// scanLocked performs the exhaustive scan. limit of 0 means unbounded.
// Caller must hold s.mu (read or write).
func (s *HNSWStore) scanLocked(q []float32, keep func(id string) bool, limit int) ([]VectorResult, error) {
	results := make([]VectorResult, 0)
	for id, vec := range s.values {
		if _, ok := s.idMap[id]; !ok {
			continue
		}
		if keep != nil && !keep(id) {
			continue
		}
		distance := s.graph.Distance(q, vec)
		results = append(results, VectorResult{ID: id, Score: distanceToScore(distance, s.config.Metric)})
	}
	sortVectorResultsDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func sortVectorResultsDesc(results []VectorResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// Delete removes vectors by ID via lazy deletion.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.values, id)
		}
	}
	return nil
}

// DeleteWhere removes all vectors whose ID satisfies match. Used by
// knowledge re-indexing, which replaces all of a source's chunks
// en masse.
func (s *HNSWStore) DeleteWhere(ctx context.Context, match func(id string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for id := range s.idMap {
		if match(id) {
			key := s.idMap[id]
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.values, id)
		}
	}
	return nil
}

// Contains checks if ID exists.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Save persists the index to disk via an atomic temp-file rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpIndexPath := path + ".tmp"
	file, err := os.Create(tmpIndexPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpIndexPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpIndexPath, path); err != nil {
		os.Remove(tmpIndexPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{IDMap: s.idMap, Values: s.values, NextKey: s.nextKey, Config: s.config}
	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp metadata file", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load loads the index from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.rowsAtLastBuild = len(s.idMap)
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswMetadata
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.values = meta.Values
	s.keyMap = make(map[uint64]string, len(s.idMap))
	s.nextKey = meta.NextKey
	s.config = meta.Config
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

var _ VectorStore = (*HNSWStore)(nil)

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a graph distance to a [0,1] similarity score.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default: // cosine distance ranges 0 (identical) to 2 (opposite)
		return 1.0 - distance/2.0
	}
}
