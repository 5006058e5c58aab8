package mock

import "github.com/fwojciec/kura"

var _ kura.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of kura.Extractor.
type Extractor struct {
	ExtractFn func(html string, pageURL string) (*kura.ExtractResult, error)
}

func (e *Extractor) Extract(html string, pageURL string) (*kura.ExtractResult, error) {
	return e.ExtractFn(html, pageURL)
}
