package kura

import (
	"context"
	"time"
)

// Run is one execution of the crawler.
type Run struct {
	ID            string    `json:"id"`
	Seed          string    `json:"seed"`
	OutputDir     string    `json:"outputDir"`
	Saved         int       `json:"saved"`
	Failed        int       `json:"failed"`
	PersistFailed int       `json:"persistFailed"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Validate returns an error if the run contains invalid fields.
func (r *Run) Validate() error {
	if r.Seed == "" {
		return Errorf(EINVALID, "run seed required")
	}
	return nil
}

// PageStatus is the outcome of one dispatched task.
type PageStatus string

// PageStatus values recorded in the manifest.
const (
	PageSaved         PageStatus = "saved"
	PageFetchFailed   PageStatus = "fetch_failed"
	PagePersistFailed PageStatus = "persist_failed"
)

// PageRecord is the manifest entry for one dispatched task.
type PageRecord struct {
	RunID       string     `json:"runId"`
	URL         string     `json:"url"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Depth       int        `json:"depth"`
	Encoding    Encoding   `json:"encoding"`
	ContentHash string     `json:"contentHash"`
	Status      PageStatus `json:"status"`
	Error       string     `json:"error"`
	RecordedAt  time.Time  `json:"recordedAt"`
}

// Validate returns an error if the record contains invalid fields.
func (r *PageRecord) Validate() error {
	if r.RunID == "" {
		return Errorf(EINVALID, "page record run ID required")
	}
	if r.URL == "" {
		return Errorf(EINVALID, "page record URL required")
	}
	switch r.Status {
	case PageSaved, PageFetchFailed, PagePersistFailed:
	default:
		return Errorf(EINVALID, "unknown page status %q", r.Status)
	}
	return nil
}

// ManifestService records crawl runs and the outcome of every page.
type ManifestService interface {
	// CreateRun stores a new run and assigns its ID and start time.
	CreateRun(ctx context.Context, run *Run) error

	// FinishRun stores the final counters and finish time of a run.
	// Returns ENOTFOUND if the run does not exist.
	FinishRun(ctx context.Context, run *Run) error

	// FindRunByID retrieves a run by ID.
	// Returns ENOTFOUND if the run does not exist.
	FindRunByID(ctx context.Context, id string) (*Run, error)

	// FindRuns retrieves runs, most recent first.
	FindRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// RecordPage stores the outcome of one dispatched task.
	RecordPage(ctx context.Context, rec *PageRecord) error

	// FindPages retrieves page records matching the filter.
	FindPages(ctx context.Context, filter PageFilter) ([]*PageRecord, error)
}

// RunFilter represents a filter for FindRuns.
type RunFilter struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// PageFilter represents a filter for FindPages.
type PageFilter struct {
	RunID  *string     `json:"runId"`
	Status *PageStatus `json:"status"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
