// Package fetcher downloads hosts sources from remote URLs.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Options tunes the fetcher. Zero values select the defaults.
type Options struct {
	Timeout           time.Duration // per-request, default 30s
	Retries           int           // attempts per URL, default 3
	RequestsPerSecond float64       // politeness limit shared by all workers, default 4
}

// Fetcher downloads source payloads with retries and a shared politeness
// limiter so parallel workers do not hammer a mirror.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	retries int
}

// New creates a new fetcher from opts.
func New(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := opts.Retries
	if retries == 0 {
		retries = 3
	}

	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = 4
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retries: retries,
	}
}

// Fetch downloads content from a URL with retries and linear backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "hostsmith/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
