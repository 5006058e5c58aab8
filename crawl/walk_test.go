package crawl_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/kura"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawl_Concurrency(t *testing.T) {
	t.Parallel()

	t.Run("never exceeds the worker bound", func(t *testing.T) {
		t.Parallel()

		const numPages = 10
		const concurrency = 3

		site := map[string][]string{seedURL: nil}
		for i := 1; i <= numPages; i++ {
			u := fmt.Sprintf("http://example.com/page%d.html", i)
			site[seedURL] = append(site[seedURL], u)
			site[u] = nil
		}

		c, m := newTestCrawler(site)
		c.Concurrency = concurrency

		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32
		fetch := m.Fetcher.FetchFn
		m.Fetcher.FetchFn = func(ctx context.Context, url string) ([]byte, error) {
			current := currentConcurrent.Add(1)
			for {
				max := maxConcurrent.Load()
				if current <= max || maxConcurrent.CompareAndSwap(max, current) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			currentConcurrent.Add(-1)
			return fetch(ctx, url)
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, numPages+1, result.Saved)
		assert.LessOrEqual(t, maxConcurrent.Load(), int32(concurrency))
		assert.Greater(t, maxConcurrent.Load(), int32(1), "siblings should be fetched in parallel")
	})

	t.Run("single worker processes sequentially", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/b.html"},
			"http://example.com/a.html": nil,
			"http://example.com/b.html": nil,
		})
		c.Concurrency = 1

		var inFlight atomic.Int32
		var overlapped atomic.Bool
		fetch := m.Fetcher.FetchFn
		m.Fetcher.FetchFn = func(ctx context.Context, url string) ([]byte, error) {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			defer inFlight.Add(-1)
			time.Sleep(5 * time.Millisecond)
			return fetch(ctx, url)
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Saved)
		assert.False(t, overlapped.Load())
	})
}

func TestCrawl_BreadthFirst(t *testing.T) {
	t.Parallel()

	t.Run("page is reached at its shortest link distance", func(t *testing.T) {
		t.Parallel()

		// x is two links away through slow.html and three through
		// fast.html/y.html. fast.html finishes first.
		c, m := newTestCrawler(map[string][]string{
			seedURL:                       {"http://example.com/slow.html", "http://example.com/fast.html"},
			"http://example.com/slow.html": {"http://example.com/x.html"},
			"http://example.com/fast.html": {"http://example.com/y.html"},
			"http://example.com/y.html":    {"http://example.com/x.html"},
			"http://example.com/x.html":    nil,
		})
		fetch := m.Fetcher.FetchFn
		m.Fetcher.FetchFn = func(ctx context.Context, url string) ([]byte, error) {
			if url == "http://example.com/slow.html" {
				time.Sleep(50 * time.Millisecond)
			}
			return fetch(ctx, url)
		}

		_, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		docs := m.savedDocs()
		require.Contains(t, docs, "x")
		assert.Equal(t, 2, docs["x"].Depth)
		assert.Equal(t, 2, docs["y"].Depth)
	})

	t.Run("depth limit uses shortest distance", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                       {"http://example.com/slow.html", "http://example.com/fast.html"},
			"http://example.com/slow.html": {"http://example.com/x.html"},
			"http://example.com/fast.html": {"http://example.com/y.html"},
			"http://example.com/y.html":    {"http://example.com/x.html"},
			"http://example.com/x.html":    nil,
		})
		c.MaxDepth = 2
		fetch := m.Fetcher.FetchFn
		m.Fetcher.FetchFn = func(ctx context.Context, url string) ([]byte, error) {
			if url == "http://example.com/slow.html" {
				time.Sleep(50 * time.Millisecond)
			}
			return fetch(ctx, url)
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 5, result.Saved)
	})
}

func TestCrawl_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("stops dispatching and finishes in-flight pages", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{seedURL: nil}
		for i := 1; i <= 20; i++ {
			u := fmt.Sprintf("http://example.com/p%d.html", i)
			site[seedURL] = append(site[seedURL], u)
			site[u] = nil
		}
		c, m := newTestCrawler(site)
		c.Concurrency = 2

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var fetched atomic.Int32
		fetch := m.Fetcher.FetchFn
		m.Fetcher.FetchFn = func(fctx context.Context, url string) ([]byte, error) {
			if fetched.Add(1) == 2 {
				cancel()
			}
			time.Sleep(10 * time.Millisecond)
			// Workers do not observe the run's cancellation.
			if fctx.Err() != nil {
				return nil, fctx.Err()
			}
			return fetch(fctx, url)
		}
		var persisted atomic.Int32
		create := m.Documents.CreateDocumentFn
		m.Documents.CreateDocumentFn = func(dctx context.Context, doc *kura.Document) error {
			persisted.Add(1)
			return create(dctx, doc)
		}

		result, err := c.Crawl(ctx, seedURL, nil)

		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result)
		assert.Less(t, result.Visited, 21)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, int(persisted.Load()), result.Saved)
		assert.Equal(t, int(fetched.Load()), result.Saved)
	})

	t.Run("already cancelled context fetches at most the seed", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html"},
			"http://example.com/a.html": nil,
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := c.Crawl(ctx, seedURL, nil)

		require.ErrorIs(t, err, context.Canceled)
		assert.LessOrEqual(t, result.Saved, 1)
		assert.Equal(t, 0, m.fetchCount("http://example.com/a.html"))
	})
}
