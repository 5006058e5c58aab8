package mock

import "github.com/fwojciec/kura"

var _ kura.EncodingResolver = (*EncodingResolver)(nil)

// EncodingResolver is a mock implementation of kura.EncodingResolver.
type EncodingResolver struct {
	ResolveFn func(raw []byte) (string, kura.Encoding)
}

func (r *EncodingResolver) Resolve(raw []byte) (string, kura.Encoding) {
	return r.ResolveFn(raw)
}
