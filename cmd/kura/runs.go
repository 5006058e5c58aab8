package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/kura"
)

// Run executes the runs command.
func (c *RunsCmd) Run(deps *Dependencies) error {
	if c.Failed != "" {
		return c.runFailed(deps)
	}

	runs, err := deps.Manifest.FindRuns(deps.Ctx, kura.RunFilter{Limit: c.Limit})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(deps.Stdout, "No runs recorded. Use 'kura crawl --manifest' to record one.")
		return nil
	}

	for _, r := range runs {
		finished := "running"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).String()
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %s  saved=%d failed=%d unwritten=%d  %s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Seed,
			r.Saved, r.Failed, r.PersistFailed, finished)
	}

	return nil
}

func (c *RunsCmd) runFailed(deps *Dependencies) error {
	if _, err := deps.Manifest.FindRunByID(deps.Ctx, c.Failed); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'kura runs' to see recorded runs.\n", kura.ErrorMessage(err))
		return err
	}

	var failed []*kura.PageRecord
	for _, status := range []kura.PageStatus{kura.PageFetchFailed, kura.PagePersistFailed} {
		recs, err := deps.Manifest.FindPages(deps.Ctx, kura.PageFilter{RunID: &c.Failed, Status: &status})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
			return err
		}
		failed = append(failed, recs...)
	}

	if len(failed) == 0 {
		fmt.Fprintf(deps.Stdout, "No failed pages in run %s\n", c.Failed)
		return nil
	}

	for _, rec := range failed {
		fmt.Fprintf(deps.Stdout, "%-14s  depth=%d  %s  %s\n", rec.Status, rec.Depth, rec.URL, rec.Error)
	}

	return nil
}
