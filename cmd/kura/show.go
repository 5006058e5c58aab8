package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/fs"
)

// Run executes the show command.
func (c *ShowCmd) Run(deps *Dependencies) error {
	doc, err := fs.ReadDocument(c.Path)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "title:  %s\n", doc.Title)
	fmt.Fprintf(deps.Stdout, "source: %s\n", doc.Slug)
	if !doc.FetchedAt.IsZero() {
		fmt.Fprintf(deps.Stdout, "crawled: %s\n", doc.FetchedAt.Format(time.DateOnly))
	}
	fmt.Fprintf(deps.Stdout, "body:   %d bytes\n", len(doc.Content))

	if c.Full {
		fmt.Fprintf(deps.Stdout, "\n%s\n", doc.Content)
	}

	return nil
}
