package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/crawl"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	progress := func(event crawl.ProgressEvent) {
		switch event.Type {
		case crawl.ProgressDispatched:
			fmt.Fprintf(deps.Stdout, "[%d/%d] %s\n", event.InFlight, event.Concurrency, event.URL)
		case crawl.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "skip %s: %s\n", event.URL, describe(event.Error))
		case crawl.ProgressPersistFailed:
			fmt.Fprintf(deps.Stderr, "not saved %s: %s\n", event.URL, describe(event.Error))
		}
	}

	result, err := deps.Crawler.Crawl(deps.Ctx, c.URL, progress)
	if result == nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Saved %d pages to %s (%s, %s)\n",
		result.Saved, c.Out, crawl.FormatBytes(result.Bytes), crawl.FormatDuration(result.Elapsed))
	if result.Failed > 0 {
		fmt.Fprintf(deps.Stdout, "Failed to fetch %d pages\n", result.Failed)
	}
	if result.PersistFailed > 0 {
		fmt.Fprintf(deps.Stdout, "Failed to write %d pages\n", result.PersistFailed)
	}
	if result.RunID != "" {
		fmt.Fprintf(deps.Stdout, "Run %s recorded\n", result.RunID)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintln(deps.Stderr, "interrupted: crawl stopped before the site was exhausted")
	default:
		fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
	}
	return err
}

// describe returns the user-facing message of an application error and the
// full text of anything else.
func describe(err error) string {
	var e *kura.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
