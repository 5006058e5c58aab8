package mock

import (
	"context"

	"github.com/fwojciec/kura"
)

var _ kura.DocumentWriter = (*DocumentWriter)(nil)

// DocumentWriter is a mock implementation of kura.DocumentWriter.
type DocumentWriter struct {
	CreateDocumentFn func(ctx context.Context, doc *kura.Document) error
}

func (w *DocumentWriter) CreateDocument(ctx context.Context, doc *kura.Document) error {
	return w.CreateDocumentFn(ctx, doc)
}
