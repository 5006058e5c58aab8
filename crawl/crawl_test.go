package crawl_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/crawl"
	"github.com/fwojciec/kura/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedURL = "http://example.com/"

// testMocks exposes the mocks behind a test crawler so tests can override
// individual functions.
type testMocks struct {
	Fetcher   *mock.Fetcher
	Resolver  *mock.EncodingResolver
	Extractor *mock.Extractor
	Documents *mock.DocumentWriter

	mu      sync.Mutex
	saved   map[string]*kura.Document
	fetches map[string]int
}

// savedDocs returns the persisted documents keyed by slug.
func (m *testMocks) savedDocs() map[string]*kura.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*kura.Document, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out
}

func (m *testMocks) fetchCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[url]
}

// newTestCrawler returns a crawler over an in-memory site. Each page's body
// is its own URL and its links are site[url]; pages missing from site fail
// with ENOTFOUND.
func newTestCrawler(site map[string][]string) (*crawl.Crawler, *testMocks) {
	m := &testMocks{
		saved:   make(map[string]*kura.Document),
		fetches: make(map[string]int),
	}
	m.Fetcher = &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) ([]byte, error) {
			m.mu.Lock()
			m.fetches[url]++
			m.mu.Unlock()
			if _, ok := site[url]; !ok {
				return nil, kura.Errorf(kura.ENOTFOUND, "HTTP 404: %s", url)
			}
			return []byte(url), nil
		},
	}
	m.Resolver = &mock.EncodingResolver{
		ResolveFn: func(raw []byte) (string, kura.Encoding) {
			return string(raw), kura.EncodingShiftJIS
		},
	}
	m.Extractor = &mock.Extractor{
		ExtractFn: func(html string, pageURL string) (*kura.ExtractResult, error) {
			return &kura.ExtractResult{
				Title:    "title of " + pageURL,
				Markdown: "body of " + pageURL,
				Links:    site[html],
			}, nil
		},
	}
	m.Documents = &mock.DocumentWriter{
		CreateDocumentFn: func(_ context.Context, doc *kura.Document) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.saved[doc.Slug] = doc
			return nil
		},
	}

	c := &crawl.Crawler{
		Fetcher:     m.Fetcher,
		Resolver:    m.Resolver,
		Extractor:   m.Extractor,
		Documents:   m.Documents,
		Concurrency: crawl.DefaultConcurrency,
		MaxDepth:    crawl.DefaultMaxDepth,
	}
	return c, m
}

func slugs(docs map[string]*kura.Document) []string {
	out := make([]string, 0, len(docs))
	for k := range docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("seed with two leaf children persists three documents", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/b.html"},
			"http://example.com/a.html": nil,
			"http://example.com/b.html": nil,
		})

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Saved)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 3, result.Visited)
		assert.Equal(t, []string{"a", "b", "index"}, slugs(m.savedDocs()))
	})

	t.Run("document carries page metadata", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL: {"http://example.com/main/"},
			"http://example.com/main/": nil,
		})

		_, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		doc := m.savedDocs()["main"]
		require.NotNil(t, doc)
		assert.Equal(t, "http://example.com/main/", doc.URL)
		assert.Equal(t, "title of http://example.com/main/", doc.Title)
		assert.Equal(t, "body of http://example.com/main/", doc.Content)
		assert.Equal(t, kura.EncodingShiftJIS, doc.Encoding)
		assert.Equal(t, 1, doc.Depth)
		assert.Len(t, doc.ContentHash, 16)
		assert.False(t, doc.FetchedAt.IsZero())
	})

	t.Run("rejects invalid seed before fetching", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(nil)

		_, err := c.Crawl(context.Background(), "not a url", nil)

		assert.Equal(t, kura.EINVALID, kura.ErrorCode(err))
		assert.Equal(t, 0, m.fetchCount("not a url"))
	})

	t.Run("rejects non-http seed", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(nil)

		_, err := c.Crawl(context.Background(), "ftp://example.com/", nil)

		assert.Equal(t, kura.EINVALID, kura.ErrorCode(err))
	})

	t.Run("rejects negative max depth", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(nil)
		c.MaxDepth = -1

		_, err := c.Crawl(context.Background(), seedURL, nil)

		assert.Equal(t, kura.EINVALID, kura.ErrorCode(err))
	})

	t.Run("stops at max depth", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/1.html"},
			"http://example.com/1.html": {"http://example.com/2.html"},
			"http://example.com/2.html": {"http://example.com/3.html"},
			"http://example.com/3.html": nil,
		})
		c.MaxDepth = 2

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Saved)
		assert.Equal(t, []string{"1", "2", "index"}, slugs(m.savedDocs()))
		assert.Equal(t, 0, m.fetchCount("http://example.com/3.html"))
	})

	t.Run("max depth zero fetches the seed only", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/1.html"},
			"http://example.com/1.html": nil,
		})
		c.MaxDepth = 0

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Saved)
	})

	t.Run("fetches each canonical page once", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL: {
				"http://example.com/p.htm",
				"http://example.com/p.html#top",
				"http://EXAMPLE.com/P.html?x=1",
				"http://example.com/index.html",
			},
			"http://example.com/p.htm": {seedURL, "http://example.com/p.html"},
		})

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Saved)
		assert.Equal(t, 2, result.Visited)
		assert.Equal(t, 1, m.fetchCount(seedURL))
		assert.Equal(t, 1, m.fetchCount("http://example.com/p.htm"))
		assert.Equal(t, 0, m.fetchCount("http://example.com/index.html"))
	})

	t.Run("fetch failure is counted and crawl continues", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/gone.html", "http://example.com/ok.html"},
			"http://example.com/ok.html": nil,
		})

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Saved)
		assert.Equal(t, 1, result.Failed)
	})

	t.Run("extraction failure is counted as failed", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                     {"http://example.com/bad.html"},
			"http://example.com/bad.html": nil,
		})
		extract := m.Extractor.ExtractFn
		m.Extractor.ExtractFn = func(html, pageURL string) (*kura.ExtractResult, error) {
			if pageURL == "http://example.com/bad.html" {
				return nil, errors.New("parse failure")
			}
			return extract(html, pageURL)
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Saved)
		assert.Equal(t, 1, result.Failed)
	})

	t.Run("persist failure is counted and crawl continues", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/b.html"},
			"http://example.com/a.html": {"http://example.com/c.html"},
			"http://example.com/b.html": nil,
			"http://example.com/c.html": nil,
		})
		create := m.Documents.CreateDocumentFn
		m.Documents.CreateDocumentFn = func(ctx context.Context, doc *kura.Document) error {
			if doc.Slug == "a" {
				return kura.Errorf(kura.EIO, "permission denied")
			}
			return create(ctx, doc)
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Saved)
		assert.Equal(t, 1, result.PersistFailed)
		// Links of a page that failed to persist are still followed.
		assert.Contains(t, m.savedDocs(), "c")
	})

	t.Run("full disk stops the crawl", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html"},
			"http://example.com/a.html": nil,
		})
		m.Documents.CreateDocumentFn = func(_ context.Context, _ *kura.Document) error {
			return kura.Errorf(kura.EEXHAUSTED, "no space left on device")
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		assert.Equal(t, kura.EEXHAUSTED, kura.ErrorCode(err))
		require.NotNil(t, result)
		assert.Equal(t, 1, result.PersistFailed)
		assert.Equal(t, 0, m.fetchCount("http://example.com/a.html"))
	})

	t.Run("max pages caps dispatches", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/b.html", "http://example.com/c.html"},
			"http://example.com/a.html": nil,
			"http://example.com/b.html": nil,
			"http://example.com/c.html": nil,
		})
		c.MaxPages = 2

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Saved)
		assert.Equal(t, 2, result.Visited)
	})

	t.Run("waits on rate limiter per host", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html"},
			"http://example.com/a.html": nil,
		})
		var mu sync.Mutex
		var hosts []string
		c.RateLimiter = &mock.DomainLimiter{
			WaitFn: func(_ context.Context, domain string) error {
				mu.Lock()
				defer mu.Unlock()
				hosts = append(hosts, domain)
				return nil
			},
		}

		_, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"example.com", "example.com"}, hosts)
	})

	t.Run("reruns persist the same document set", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/b/"},
			"http://example.com/a.html": {"http://example.com/b/c.html"},
			"http://example.com/b/":     {"http://example.com/a.html"},
			"http://example.com/b/c.html": nil,
		}

		c1, m1 := newTestCrawler(site)
		c1.Concurrency = 1
		_, err := c1.Crawl(context.Background(), seedURL, nil)
		require.NoError(t, err)

		c2, m2 := newTestCrawler(site)
		c2.Concurrency = 4
		_, err = c2.Crawl(context.Background(), seedURL, nil)
		require.NoError(t, err)

		first, second := m1.savedDocs(), m2.savedDocs()
		require.Equal(t, slugs(first), slugs(second))
		for slug, doc := range first {
			assert.Equal(t, doc.Content, second[slug].Content, slug)
			assert.Equal(t, doc.Depth, second[slug].Depth, slug)
			assert.Equal(t, doc.ContentHash, second[slug].ContentHash, slug)
		}
		assert.NotEqual(t, first["index"].ContentHash, first["a"].ContentHash)
	})
}

func TestCrawler_Crawl_Progress(t *testing.T) {
	t.Parallel()

	c, _ := newTestCrawler(map[string][]string{
		seedURL:                    {"http://example.com/a.html", "http://example.com/gone.html"},
		"http://example.com/a.html": nil,
	})

	var events []crawl.ProgressEvent
	_, err := c.Crawl(context.Background(), seedURL, func(e crawl.ProgressEvent) {
		events = append(events, e)
	})

	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, crawl.ProgressStarted, events[0].Type)
	assert.Equal(t, crawl.ProgressFinished, events[len(events)-1].Type)
	assert.Equal(t, 3, events[len(events)-1].Completed)

	counts := make(map[crawl.ProgressType]int)
	for _, e := range events {
		counts[e.Type]++
		if e.Type == crawl.ProgressDispatched {
			assert.GreaterOrEqual(t, e.InFlight, 1)
			assert.LessOrEqual(t, e.InFlight, e.Concurrency)
		}
	}
	assert.Equal(t, 3, counts[crawl.ProgressDispatched])
	assert.Equal(t, 2, counts[crawl.ProgressCompleted])
	assert.Equal(t, 1, counts[crawl.ProgressFailed])
}

func TestCrawler_Crawl_Manifest(t *testing.T) {
	t.Parallel()

	t.Run("records run and every page", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{
			seedURL:                    {"http://example.com/a.html", "http://example.com/gone.html"},
			"http://example.com/a.html": nil,
		})
		m.Documents.CreateDocumentFn = func(_ context.Context, doc *kura.Document) error {
			if doc.Slug == "a" {
				return kura.Errorf(kura.EIO, "read-only")
			}
			return nil
		}

		var (
			mu       sync.Mutex
			records  = make(map[string]*kura.PageRecord)
			finished *kura.Run
		)
		c.OutputDir = "out"
		c.Manifest = &mock.ManifestService{
			CreateRunFn: func(_ context.Context, run *kura.Run) error {
				assert.Equal(t, seedURL, run.Seed)
				assert.Equal(t, "out", run.OutputDir)
				run.ID = "run-1"
				return nil
			},
			RecordPageFn: func(_ context.Context, rec *kura.PageRecord) error {
				mu.Lock()
				defer mu.Unlock()
				records[rec.URL] = rec
				return nil
			},
			FinishRunFn: func(_ context.Context, run *kura.Run) error {
				finished = run
				return nil
			},
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, "run-1", result.RunID)
		require.Len(t, records, 3)

		seed := records[seedURL]
		assert.Equal(t, kura.PageSaved, seed.Status)
		assert.Equal(t, "run-1", seed.RunID)
		assert.Equal(t, "index", seed.Slug)
		assert.Equal(t, kura.EncodingShiftJIS, seed.Encoding)
		assert.NotEmpty(t, seed.ContentHash)

		assert.Equal(t, kura.PagePersistFailed, records["http://example.com/a.html"].Status)
		assert.Contains(t, records["http://example.com/a.html"].Error, "read-only")

		gone := records["http://example.com/gone.html"]
		assert.Equal(t, kura.PageFetchFailed, gone.Status)
		assert.Equal(t, 1, gone.Depth)

		require.NotNil(t, finished)
		assert.Equal(t, 1, finished.Saved)
		assert.Equal(t, 1, finished.Failed)
		assert.Equal(t, 1, finished.PersistFailed)
	})

	t.Run("create run failure aborts before fetching", func(t *testing.T) {
		t.Parallel()

		c, m := newTestCrawler(map[string][]string{seedURL: nil})
		c.Manifest = &mock.ManifestService{
			CreateRunFn: func(_ context.Context, _ *kura.Run) error {
				return errors.New("database is locked")
			},
		}

		_, err := c.Crawl(context.Background(), seedURL, nil)

		require.Error(t, err)
		assert.Equal(t, 0, m.fetchCount(seedURL))
	})

	t.Run("record failures do not affect the crawl", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCrawler(map[string][]string{seedURL: nil})
		c.Manifest = &mock.ManifestService{
			CreateRunFn: func(_ context.Context, run *kura.Run) error {
				run.ID = "run-2"
				return nil
			},
			RecordPageFn: func(_ context.Context, _ *kura.PageRecord) error {
				return errors.New("disk I/O error")
			},
			FinishRunFn: func(_ context.Context, _ *kura.Run) error {
				return errors.New("disk I/O error")
			},
		}

		result, err := c.Crawl(context.Background(), seedURL, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Saved)
	})
}
