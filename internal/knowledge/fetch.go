package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/octobrain/octobrain/internal/ferrors"
)

// Fetcher retrieves a URL's HTML body under a bounded timeout and
// redirect count. A zero-value Fetcher uses DefaultFetchTimeout/DefaultMaxRedirects.
type Fetcher struct {
	Timeout      time.Duration
	MaxRedirects int
	client       *http.Client
}

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxRedirects = 5
)

func (f *Fetcher) httpClient() *http.Client {
	if f.client != nil {
		return f.client
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxRedirects := f.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	f.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return f.client
}

// Fetch performs a GET against url, failing with ferrors.FetchFailed on
// any transport error or a >=400 status.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ferrors.New(ferrors.InvalidInput, "malformed fetch request", err)
	}
	req.Header.Set("User-Agent", "octobrain-knowledge/1.0")

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, ferrors.New(ferrors.FetchFailed, fmt.Sprintf("fetching %s", rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, ferrors.New(ferrors.FetchFailed, fmt.Sprintf("fetching %s: status %d", rawURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MiB ceiling
	if err != nil {
		return nil, ferrors.New(ferrors.FetchFailed, fmt.Sprintf("reading body of %s", rawURL), err)
	}

	return &fetchedPage{
		html:       string(body),
		fetchedAt:  time.Now(),
		etag:       resp.Header.Get("ETag"),
		statusCode: resp.StatusCode,
	}, nil
}
