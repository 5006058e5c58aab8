// Package http provides an HTTP-based implementation of kura.Fetcher
// for the static pages of the legacy site.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/kura"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultUserAgent identifies the crawler as a desktop browser; some legacy
// hosts serve a reduced page to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (compatible; kura/1.0; +https://github.com/fwojciec/kura)"

// DefaultMaxBodySize caps the bytes read from a single response.
const DefaultMaxBodySize = 16 << 20

// Ensure Fetcher implements kura.Fetcher at compile time.
var _ kura.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page bytes using HTTP GET requests.
// It does not execute JavaScript.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize caps the number of bytes read from a response body.
// Larger bodies fail with EINVALID.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithClient replaces the underlying HTTP client. The timeout option is
// ignored when a client is supplied.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client = &http.Client{
			Timeout: f.timeout,
		}
	}

	return f
}

// Fetch retrieves the raw body of the given URL.
//
// Network failures, timeouts, 5xx, 408 and 429 responses are ETRANSPORT.
// 404 and 410 are ENOTFOUND. Other non-2xx responses are EINVALID.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kura.Errorf(kura.EINVALID, "invalid request for %s: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, transportError(url, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, kura.Errorf(kura.EINVALID, "response for %s exceeds %d bytes", url, f.maxBodySize)
	}

	return body, nil
}

// Close releases resources. For HTTP fetcher this is a no-op since
// http.Client doesn't require explicit cleanup.
func (f *Fetcher) Close() error {
	return nil
}

func statusError(url string, code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return kura.Errorf(kura.ENOTFOUND, "HTTP %d for %s", code, url)
	case code >= 500, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return kura.Errorf(kura.ETRANSPORT, "HTTP %d for %s", code, url)
	default:
		return kura.Errorf(kura.EINVALID, "HTTP %d for %s", code, url)
	}
}

func transportError(url string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	return kura.Errorf(kura.ETRANSPORT, "fetch %s: %v", url, err)
}
