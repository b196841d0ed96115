package retrieval

// Options configures a single Retrieve call, per spec.md §4.4.
type Options struct {
	// Limit is the maximum number of results returned.
	Limit int

	// MinRelevance drops results scoring below this threshold.
	MinRelevance float64

	// CandidatePoolSize (K) bounds how many dense and lexical candidates
	// are pulled per query before fusion.
	CandidatePoolSize int

	// Filter narrows both dense and lexical candidates to matching ids.
	// A nil Filter keeps everything.
	Filter func(id string) bool

	// DecayEnabled applies temporal decay to fused scores (memories
	// only; knowledge chunks always leave this false).
	DecayEnabled bool

	// HalfLifeDays is the decay half-life; zero uses DefaultHalfLifeDays.
	HalfLifeDays float64

	// DenseWeight and LexicalWeight are the per-query fusion weights
	// (alpha, beta). Both zero falls back to the spec defaults (0.7/0.3).
	DenseWeight   float64
	LexicalWeight float64

	// RRFConstant (k) controls multi-query Reciprocal Rank Fusion. Zero
	// falls back to DefaultRRFConstant.
	RRFConstant int

	// UseReranker requests a reranking pass over the top candidates when
	// the Engine's Embedder also implements Reranker.
	UseReranker bool

	// Explain requests that each Result carry an Explanation of its
	// dense/lexical contributions. Off by default: building it costs an
	// extra pass over the candidate lists that most callers don't need.
	Explain bool
}

// fillDefaults returns a copy of opts with zero-valued fields replaced by
// spec defaults.
func fillDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.CandidatePoolSize <= 0 {
		opts.CandidatePoolSize = 50
	}
	if opts.HalfLifeDays <= 0 {
		opts.HalfLifeDays = DefaultHalfLifeDays
	}
	if opts.DenseWeight <= 0 && opts.LexicalWeight <= 0 {
		opts.DenseWeight = DefaultDenseWeight
		opts.LexicalWeight = DefaultLexicalWeight
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	if opts.Filter == nil {
		opts.Filter = func(string) bool { return true }
	}
	return opts
}

// DefaultOptions returns spec-compliant defaults for a single-query,
// non-decaying, non-reranked retrieval.
func DefaultOptions() Options {
	return fillDefaults(Options{})
}
