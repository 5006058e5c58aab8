package mock

import "github.com/fwojciec/kura"

var _ kura.Converter = (*Converter)(nil)

// Converter is a mock implementation of kura.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
