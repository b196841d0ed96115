package embed

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds the number of in-flight embedding calls against a single
// Embedder. EmbedAll fans texts out across one goroutine each; the cap
// keeps a large input from opening hundreds of concurrent HTTP requests
// against Ollama and starving every other caller.
type Pool struct {
	embedder Embedder
	sem      chan struct{}
}

// NewPool wraps embedder with a concurrency limiter. size must be positive;
// DefaultPoolSize is used if size <= 0.
func NewPool(embedder Embedder, size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		embedder: embedder,
		sem:      make(chan struct{}, size),
	}
}

// Embed acquires a pool slot and embeds a single text.
func (p *Pool) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()
	return p.embedder.Embed(ctx, text, mode)
}

// EmbedAll embeds many independent texts concurrently, all in the same
// mode, bounded by the pool's size, and returns results in input order.
// The first error encountered cancels the remaining work.
func (p *Pool) EmbedAll(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			if err := p.acquire(gctx); err != nil {
				return err
			}
			defer p.release()

			vec, err := p.embedder.Embed(gctx, text, mode)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	<-p.sem
}

// Dimensions returns the wrapped embedder's dimension.
func (p *Pool) Dimensions() int { return p.embedder.Dimensions() }

// ModelName returns the wrapped embedder's model identifier.
func (p *Pool) ModelName() string { return p.embedder.ModelName() }

// Close releases the wrapped embedder.
func (p *Pool) Close() error { return p.embedder.Close() }
