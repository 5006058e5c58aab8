package kura

import "context"

// Fetcher retrieves the raw bytes of a page.
// The bytes are returned undecoded; an EncodingResolver turns them into text.
type Fetcher interface {
	// Fetch retrieves the page at url. Failures are reported with the
	// ETRANSPORT, ENOTFOUND or EINVALID codes.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
