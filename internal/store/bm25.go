package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryBM25Index is a hand-rolled in-memory BM25 index. Octobrain
// never uses a third-party full-text engine for this layer: the
// domain's tokenization (no stemming, no stopwords, per spec.md §4.3)
// and the dual main-index/append-buffer rebuild schedule below are
// specific enough that a general-purpose search library would need to
// be fought rather than used, so this is one of the few parts of
// octobrain built on nothing but the standard library (see DESIGN.md).
//
// Writes land in an append buffer and are scored by a linear scan
// alongside the optimized main postings list, giving read-your-writes
// freshness without rebuilding on every write. The buffer is folded
// into the main postings (a "rebuild") once writes-since-build exceed
// the smaller of (corpus size × RebuildFraction) or
// RebuildWriteThreshold.
type MemoryBM25Index struct {
	mu     sync.RWMutex
	config BM25Config

	// main is the last-rebuilt postings list.
	mainPostings map[string][]posting // term -> postings
	mainDocLen   map[string]int
	mainTotalLen int64
	mainCount    int

	// buffer holds documents indexed since the last rebuild, plus
	// tombstones for documents deleted since the last rebuild.
	buffer    map[string]*Document
	tombstone map[string]struct{}

	writesSinceBuild int
	closed            bool
}

type posting struct {
	docID string
	freq  int
}

// NewMemoryBM25Index creates an empty BM25 index.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	return &MemoryBM25Index{
		config:       config,
		mainPostings: make(map[string][]posting),
		mainDocLen:   make(map[string]int),
		buffer:       make(map[string]*Document),
		tombstone:    make(map[string]struct{}),
	}
}

// Index adds or replaces documents in the append buffer.
func (idx *MemoryBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		idx.buffer[doc.ID] = doc
		delete(idx.tombstone, doc.ID)
		idx.writesSinceBuild++
	}

	idx.maybeRebuildLocked()
	return nil
}

// Delete removes documents by ID.
func (idx *MemoryBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range docIDs {
		delete(idx.buffer, id)
		if _, inMain := idx.mainDocLen[id]; inMain {
			idx.tombstone[id] = struct{}{}
		}
		idx.writesSinceBuild++
	}

	idx.maybeRebuildLocked()
	return nil
}

// corpusSizeLocked returns the logical document count (main minus
// tombstoned, plus buffered).
func (idx *MemoryBM25Index) corpusSizeLocked() int {
	return idx.mainCount - len(idx.tombstone) + len(idx.buffer)
}

// maybeRebuildLocked folds the buffer into the main postings list once
// the write threshold is crossed. Caller must hold idx.mu.
func (idx *MemoryBM25Index) maybeRebuildLocked() {
	threshold := idx.config.RebuildWriteThreshold
	byFraction := int(float64(idx.corpusSizeLocked()) * idx.config.RebuildFraction)
	if byFraction > 0 && byFraction < threshold {
		threshold = byFraction
	}
	if threshold <= 0 {
		threshold = 1
	}
	if idx.writesSinceBuild < threshold {
		return
	}
	idx.rebuildLocked()
}

// rebuildLocked recomputes the main postings list from the current main
// state plus the pending buffer and tombstones, then clears both.
func (idx *MemoryBM25Index) rebuildLocked() {
	newDocLen := make(map[string]int)
	newTotalLen := int64(0)
	terms := make(map[string]map[string]int) // term -> docID -> freq

	addDoc := func(id, content string) {
		tokens := Tokenize(content, idx.config.MinTokenLength)
		newDocLen[id] = len(tokens)
		newTotalLen += int64(len(tokens))
		freqs := make(map[string]int)
		for _, t := range tokens {
			freqs[t]++
		}
		for t, f := range freqs {
			if terms[t] == nil {
				terms[t] = make(map[string]int)
			}
			terms[t][id] = f
		}
	}

	// Re-tokenize surviving main documents. We did not retain the
	// original content for main documents, so we reconstruct postings
	// by keeping existing main postings for IDs that are neither
	// tombstoned nor overwritten by the buffer.
	keepFromMain := make(map[string]struct{}, len(idx.mainDocLen))
	for id := range idx.mainDocLen {
		if _, tomb := idx.tombstone[id]; tomb {
			continue
		}
		if _, overwritten := idx.buffer[id]; overwritten {
			continue
		}
		keepFromMain[id] = struct{}{}
	}
	for term, plist := range idx.mainPostings {
		for _, p := range plist {
			if _, keep := keepFromMain[p.docID]; !keep {
				continue
			}
			if terms[term] == nil {
				terms[term] = make(map[string]int)
			}
			terms[term][p.docID] = p.freq
		}
	}
	for id := range keepFromMain {
		newDocLen[id] = idx.mainDocLen[id]
		newTotalLen += int64(idx.mainDocLen[id])
	}

	for id, doc := range idx.buffer {
		addDoc(id, doc.Content)
	}

	mainPostings := make(map[string][]posting, len(terms))
	for term, docFreqs := range terms {
		plist := make([]posting, 0, len(docFreqs))
		for id, f := range docFreqs {
			plist = append(plist, posting{docID: id, freq: f})
		}
		mainPostings[term] = plist
	}

	idx.mainPostings = mainPostings
	idx.mainDocLen = newDocLen
	idx.mainTotalLen = newTotalLen
	idx.mainCount = len(newDocLen)
	idx.buffer = make(map[string]*Document)
	idx.tombstone = make(map[string]struct{})
	idx.writesSinceBuild = 0
}

// Search scores documents (main and buffered) against query using BM25,
// normalizes scores to [0,1] by the top score in the result set (spec.md
// §4.3), and returns the top limit results, highest score first.
func (idx *MemoryBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}

	queryTokens := Tokenize(query, idx.config.MinTokenLength)
	if len(queryTokens) == 0 {
		return []*BM25Result{}, nil
	}

	n := idx.corpusSizeLocked()
	if n == 0 {
		return []*BM25Result{}, nil
	}
	avgDocLen := idx.avgDocLenLocked()

	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	// Score against the main postings, skipping tombstoned documents.
	for _, term := range uniqueTerms(queryTokens) {
		plist, ok := idx.mainPostings[term]
		if !ok {
			continue
		}
		docFreq := 0
		for _, p := range plist {
			if _, tomb := idx.tombstone[p.docID]; tomb {
				continue
			}
			docFreq++
		}
		if docFreq == 0 {
			continue
		}
		idf := idfScore(n, docFreq)
		for _, p := range plist {
			if _, tomb := idx.tombstone[p.docID]; tomb {
				continue
			}
			dl := idx.mainDocLen[p.docID]
			scores[p.docID] += idf * termScore(p.freq, dl, avgDocLen, idx.config)
			recordMatch(matched, p.docID, term)
		}
	}

	// Score buffered documents by linear scan.
	for id, doc := range idx.buffer {
		tokens := Tokenize(doc.Content, idx.config.MinTokenLength)
		dl := len(tokens)
		freqs := make(map[string]int)
		for _, t := range tokens {
			freqs[t]++
		}
		for _, term := range uniqueTerms(queryTokens) {
			f, present := freqs[term]
			if !present {
				continue
			}
			docFreq := idx.documentFrequencyLocked(term)
			idf := idfScore(n, docFreq)
			scores[id] += idf * termScore(f, dl, avgDocLen, idx.config)
			recordMatch(matched, id, term)
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		terms := make([]string, 0, len(matched[id]))
		for t := range matched[id] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, &BM25Result{DocID: id, Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	// Normalize to [0,1] by the top score in the result set, per spec.md
	// §4.3. results is sorted descending, so results[0] holds the max.
	if len(results) > 0 {
		if max := results[0].Score; max > 0 {
			for _, r := range results {
				r.Score /= max
			}
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// documentFrequencyLocked counts documents (main, non-tombstoned, plus
// buffered) containing term. Caller must hold idx.mu (read or write).
func (idx *MemoryBM25Index) documentFrequencyLocked(term string) int {
	count := 0
	for _, p := range idx.mainPostings[term] {
		if _, tomb := idx.tombstone[p.docID]; !tomb {
			count++
		}
	}
	for _, doc := range idx.buffer {
		for _, t := range Tokenize(doc.Content, idx.config.MinTokenLength) {
			if t == term {
				count++
				break
			}
		}
	}
	return count
}

func (idx *MemoryBM25Index) avgDocLenLocked() float64 {
	n := idx.corpusSizeLocked()
	if n == 0 {
		return 0
	}
	total := idx.mainTotalLen
	// Subtract tombstoned lengths, add buffered lengths.
	for id := range idx.tombstone {
		total -= int64(idx.mainDocLen[id])
	}
	for _, doc := range idx.buffer {
		total += int64(len(Tokenize(doc.Content, idx.config.MinTokenLength)))
	}
	return float64(total) / float64(n)
}

func idfScore(n, docFreq int) float64 {
	return math.Log(1 + (float64(n)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}

func termScore(freq, docLen int, avgDocLen float64, cfg BM25Config) float64 {
	if avgDocLen == 0 {
		avgDocLen = 1
	}
	num := float64(freq) * (cfg.K1 + 1)
	den := float64(freq) + cfg.K1*(1-cfg.B+cfg.B*float64(docLen)/avgDocLen)
	return num / den
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func recordMatch(matched map[string]map[string]struct{}, docID, term string) {
	if matched[docID] == nil {
		matched[docID] = make(map[string]struct{})
	}
	matched[docID][term] = struct{}{}
}

// AllIDs returns every live document ID (main minus tombstones, plus buffered).
func (idx *MemoryBM25Index) AllIDs() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}

	ids := make([]string, 0, idx.corpusSizeLocked())
	for id := range idx.mainDocLen {
		if _, tomb := idx.tombstone[id]; !tomb {
			ids = append(ids, id)
		}
	}
	for id := range idx.buffer {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats reports the index's current size and rebuild posture.
func (idx *MemoryBM25Index) Stats() *IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := idx.corpusSizeLocked()
	avg := 0.0
	if n > 0 {
		avg = idx.avgDocLenLocked()
	}
	return &IndexStats{
		DocumentCount:     n,
		TermCount:         len(idx.mainPostings),
		AvgDocLength:      avg,
		WritesSinceBuild:  idx.writesSinceBuild,
		BufferedDocuments: len(idx.buffer),
	}
}

// Close marks the index closed. Octobrain's lexical index is rebuilt
// from the metadata store on startup, so there is nothing to persist.
func (idx *MemoryBM25Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

var _ BM25Index = (*MemoryBM25Index)(nil)
