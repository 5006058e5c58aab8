package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/fwojciec/kura"
	"golang.org/x/sync/errgroup"
)

// taskResult holds the outcome of processing a single task.
type taskResult struct {
	task       kura.Task
	doc        *kura.Document
	links      []string
	err        error
	persistErr error
}

// walkDispatchHandler is called after a task is handed to a worker.
type walkDispatchHandler func(task kura.Task, inFlight int)

// walkResultHandler handles a completed task. A non-nil error stops
// further dispatching and is returned by walk.
type walkResultHandler func(res *taskResult) error

// walk runs the coordinator loop. It is the only code that touches the
// frontier while workers run:
//   - a task is dispatched only when a worker is idle, so at most
//     Concurrency tasks are in flight;
//   - a task at depth d is not dispatched while any task shallower than d
//     is in flight, so every page is reached at its shortest link distance;
//   - links from a completed task are queued at depth+1 while that does
//     not exceed MaxDepth;
//   - the loop ends when nothing is queued and nothing is in flight.
//
// Cancelling ctx stops dispatching. Workers run on a context detached from
// ctx so in-flight fetches and writes complete.
func (c *Crawler) walk(
	ctx context.Context,
	frontier *Frontier,
	dispatched walkDispatchHandler,
	handleResult walkResultHandler,
) error {
	concurrency := c.concurrency()

	workCh := make(chan kura.Task)
	resultCh := make(chan *taskResult)

	workCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for range concurrency {
		g.Go(func() error {
			for task := range workCh {
				resultCh <- c.process(workCtx, task)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(resultCh)
	}()

	var (
		stopErr    error
		stopped    bool
		inFlight   int
		dispatches int
		depths     = make(map[int]int)
	)

	canDispatch := func() (kura.Task, bool) {
		if !stopped && ctx.Err() != nil {
			stopped = true
		}
		if stopped {
			return kura.Task{}, false
		}
		if c.MaxPages > 0 && dispatches >= c.MaxPages {
			return kura.Task{}, false
		}
		next, ok := frontier.Peek()
		if !ok {
			return kura.Task{}, false
		}
		for d, n := range depths {
			if n > 0 && d < next.Depth {
				return kura.Task{}, false
			}
		}
		return next, true
	}

	for {
		next, ok := canDispatch()
		if !ok && inFlight == 0 {
			break
		}

		var workSend chan<- kura.Task
		if ok {
			workSend = workCh
		}
		var done <-chan struct{}
		if !stopped {
			done = ctx.Done()
		}

		select {
		case workSend <- next:
			task, _ := frontier.Next()
			inFlight++
			dispatches++
			depths[task.Depth]++
			dispatched(task, inFlight)

		case res := <-resultCh:
			inFlight--
			depths[res.task.Depth]--
			if err := handleResult(res); err != nil && !stopped {
				stopped = true
				stopErr = err
			}
			if res.err == nil && !stopped {
				c.enqueueLinks(frontier, res)
			}

		case <-done:
			stopped = true
		}
	}

	close(workCh)
	for range resultCh {
	}

	return stopErr
}

// enqueueLinks queues the links found on a completed task one level deeper.
func (c *Crawler) enqueueLinks(frontier *Frontier, res *taskResult) {
	depth := res.task.Depth + 1
	if depth > c.MaxDepth {
		return
	}
	for _, link := range res.links {
		key, err := kura.CanonicalKey(link)
		if err != nil {
			continue
		}
		frontier.Push(kura.Task{URL: link, Key: key, Depth: depth})
	}
}

// process fetches, decodes, extracts and persists a single task.
func (c *Crawler) process(ctx context.Context, task kura.Task) *taskResult {
	res := &taskResult{task: task}

	if c.RateLimiter != nil {
		u, err := url.Parse(task.URL)
		if err != nil {
			res.err = kura.Errorf(kura.EINVALID, "invalid URL %q", task.URL)
			return res
		}
		if err := c.RateLimiter.Wait(ctx, u.Host); err != nil {
			res.err = err
			return res
		}
	}

	logRetry := func(format string, args ...any) {
		c.logger().Info(fmt.Sprintf(format, args...))
	}
	raw, err := FetchWithRetryDelays(ctx, task.URL, c.Fetcher.Fetch, logRetry, c.RetryDelays)
	if err != nil {
		res.err = err
		return res
	}

	text, enc := c.Resolver.Resolve(raw)

	extracted, err := c.Extractor.Extract(text, task.URL)
	if err != nil {
		res.err = err
		return res
	}
	res.links = extracted.Links

	slug, err := kura.Slug(task.URL)
	if err != nil {
		res.err = err
		return res
	}

	res.doc = &kura.Document{
		URL:         task.URL,
		Slug:        slug,
		Title:       extracted.Title,
		Content:     extracted.Markdown,
		ContentHash: computeHash(extracted.Markdown),
		Encoding:    enc,
		Depth:       task.Depth,
		Links:       extracted.Links,
		FetchedAt:   time.Now().UTC(),
	}
	res.persistErr = c.Documents.CreateDocument(ctx, res.doc)

	return res
}
