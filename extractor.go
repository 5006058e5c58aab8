package kura

// ExtractResult holds the content extracted from one page.
type ExtractResult struct {
	// Title is the page title chosen by the title heuristics.
	// It is never empty; pages without a usable title get "Untitled".
	Title string

	// ContentHTML is the page body with scripts and site chrome removed.
	ContentHTML string

	// Markdown is ContentHTML rendered and cleaned up.
	Markdown string

	// Links are the absolute, same-origin URLs found on the page,
	// de-duplicated and sorted.
	Links []string
}

// Extractor derives a title, body and outbound links from a decoded page.
type Extractor interface {
	// Extract processes decoded HTML fetched from pageURL.
	// Missing titles or bodies degrade to defaults instead of failing.
	Extract(html string, pageURL string) (*ExtractResult, error)
}
