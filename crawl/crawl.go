// Package crawl coordinates a recursive crawl of one site: it owns the
// frontier, dispatches fetches to a bounded worker pool, and hands each
// extracted page to the document writer.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/kura"
)

// Defaults applied by the CLI.
const (
	DefaultConcurrency = 3
	DefaultMaxDepth    = 5
	DefaultDelay       = time.Second
)

// Frontier configuration.
const (
	// frontierExpectedURLs is the expected number of URLs for Bloom filter sizing.
	frontierExpectedURLs = 10000
	// frontierFalsePositiveRate is the acceptable false positive rate of the pre-check.
	frontierFalsePositiveRate = 0.01
)

// Crawler crawls a site breadth-first from a seed URL.
type Crawler struct {
	Fetcher   kura.Fetcher
	Resolver  kura.EncodingResolver
	Extractor kura.Extractor
	Documents kura.DocumentWriter

	// Manifest, if set, records the run and the outcome of every page.
	Manifest kura.ManifestService

	// RateLimiter, if set, is awaited by a worker before each fetch.
	RateLimiter kura.DomainLimiter

	// Concurrency bounds the number of in-flight tasks. Defaults to 3.
	Concurrency int

	// MaxDepth is the deepest link distance from the seed that is fetched.
	// Zero fetches the seed only.
	MaxDepth int

	// MaxPages stops dispatching after this many tasks. Zero means no limit.
	MaxPages int

	// RetryDelays are the waits between fetch attempts for transport
	// failures. Nil disables retries.
	RetryDelays []time.Duration

	// Logger receives retry messages. Defaults to discarding them.
	Logger *slog.Logger

	// OutputDir is recorded in the manifest.
	OutputDir string
}

// Result holds the outcome of a crawl operation.
type Result struct {
	RunID         string
	Saved         int
	Failed        int
	PersistFailed int
	Visited       int
	Bytes         int
	Elapsed       time.Duration
}

// ProgressEvent reports progress during a crawl operation.
type ProgressEvent struct {
	Type        ProgressType
	URL         string
	Depth       int
	InFlight    int
	Concurrency int
	Queued      int
	Completed   int
	Error       error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressDispatched
	ProgressCompleted
	ProgressFailed
	ProgressPersistFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting crawl progress.
// It is only ever called from the coordinating goroutine.
type ProgressFunc func(event ProgressEvent)

// Crawl fetches seedURL and every same-origin page reachable from it within
// MaxDepth links, writing each page through Documents.
//
// An invalid seed fails before anything is fetched. Individual page
// failures are counted in the Result and do not stop the crawl. A full disk
// (EEXHAUSTED) stops dispatching; in-flight pages finish and the error is
// returned together with the partial Result.
//
// When ctx is done, no further pages are dispatched and in-flight pages are
// allowed to finish, so no document is left half written. The partial Result
// is returned with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, seedURL string, progress ProgressFunc) (*Result, error) {
	seedKey, err := kura.CanonicalKey(seedURL)
	if err != nil {
		return nil, err
	}
	if c.MaxDepth < 0 {
		return nil, kura.Errorf(kura.EINVALID, "max depth must not be negative")
	}

	start := time.Now()
	result := &Result{}

	var run *kura.Run
	if c.Manifest != nil {
		run = &kura.Run{Seed: seedURL, OutputDir: c.OutputDir}
		if err := c.Manifest.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		result.RunID = run.ID
	}

	frontier := NewFrontier(frontierExpectedURLs, frontierFalsePositiveRate)
	frontier.Push(kura.Task{URL: seedURL, Key: seedKey, Depth: 0})

	emit := func(event ProgressEvent) {
		if progress != nil {
			progress(event)
		}
	}
	emit(ProgressEvent{Type: ProgressStarted, URL: seedURL, Concurrency: c.concurrency()})

	// Outcomes are recorded after the run context may have expired.
	recordCtx := context.WithoutCancel(ctx)
	completed := 0
	handle := func(res *taskResult) error {
		completed++
		event := ProgressEvent{
			URL:         res.task.URL,
			Depth:       res.task.Depth,
			Concurrency: c.concurrency(),
			Queued:      frontier.Len(),
			Completed:   completed,
		}

		var fatal error
		switch {
		case res.err != nil:
			result.Failed++
			event.Type = ProgressFailed
			event.Error = res.err
		case res.persistErr != nil:
			result.PersistFailed++
			event.Type = ProgressPersistFailed
			event.Error = res.persistErr
			if kura.ErrorCode(res.persistErr) == kura.EEXHAUSTED {
				fatal = res.persistErr
			}
		default:
			result.Saved++
			result.Bytes += len(res.doc.Content)
			event.Type = ProgressCompleted
		}
		emit(event)

		if run != nil {
			c.record(recordCtx, run.ID, res)
		}
		return fatal
	}

	dispatched := func(task kura.Task, inFlight int) {
		emit(ProgressEvent{
			Type:        ProgressDispatched,
			URL:         task.URL,
			Depth:       task.Depth,
			InFlight:    inFlight,
			Concurrency: c.concurrency(),
			Queued:      frontier.Len(),
			Completed:   completed,
		})
	}

	walkErr := c.walk(ctx, frontier, dispatched, handle)

	result.Visited = frontier.Visited()
	result.Elapsed = time.Since(start)

	if run != nil {
		run.Saved = result.Saved
		run.Failed = result.Failed
		run.PersistFailed = result.PersistFailed
		if err := c.Manifest.FinishRun(recordCtx, run); err != nil {
			c.logger().Warn("finish run", "run", run.ID, "err", err)
		}
	}

	emit(ProgressEvent{Type: ProgressFinished, Completed: completed, Concurrency: c.concurrency()})

	if walkErr != nil {
		return result, walkErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// record stores the outcome of one task in the manifest. Manifest failures
// are logged and never affect the crawl.
func (c *Crawler) record(ctx context.Context, runID string, res *taskResult) {
	rec := &kura.PageRecord{
		RunID: runID,
		URL:   res.task.URL,
		Depth: res.task.Depth,
	}
	if slug, err := kura.Slug(res.task.URL); err == nil {
		rec.Slug = slug
	}
	switch {
	case res.err != nil:
		rec.Status = kura.PageFetchFailed
		rec.Error = res.err.Error()
	case res.persistErr != nil:
		rec.Status = kura.PagePersistFailed
		rec.Error = res.persistErr.Error()
	default:
		rec.Status = kura.PageSaved
	}
	if res.doc != nil {
		rec.Title = res.doc.Title
		rec.Encoding = res.doc.Encoding
		rec.ContentHash = res.doc.ContentHash
	}

	if err := c.Manifest.RecordPage(ctx, rec); err != nil {
		c.logger().Warn("record page", "url", rec.URL, "err", err)
	}
}

func (c *Crawler) concurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
