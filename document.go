package kura

import (
	"context"
	"time"
)

// Document is an extracted page ready to be persisted.
type Document struct {
	URL         string    `json:"url"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHash string    `json:"contentHash"`
	Encoding    Encoding  `json:"encoding"`
	Depth       int       `json:"depth"`
	Links       []string  `json:"links"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.URL == "" {
		return Errorf(EINVALID, "document URL required")
	}
	if d.Slug == "" {
		return Errorf(EINVALID, "document slug required")
	}
	return nil
}

// DocumentWriter writes documents to storage.
type DocumentWriter interface {
	// CreateDocument persists doc, replacing any earlier copy with the
	// same slug. Returns EIO on write failures and EEXHAUSTED when the
	// storage has run out of space.
	CreateDocument(ctx context.Context, doc *Document) error
}
