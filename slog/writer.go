package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/kura"
)

// Ensure LoggingWriter implements kura.DocumentWriter.
var _ kura.DocumentWriter = (*LoggingWriter)(nil)

// LoggingWriter wraps a DocumentWriter with debug logging.
type LoggingWriter struct {
	next   kura.DocumentWriter
	logger *slog.Logger
}

// NewLoggingWriter creates a new LoggingWriter.
func NewLoggingWriter(next kura.DocumentWriter, logger *slog.Logger) *LoggingWriter {
	return &LoggingWriter{next: next, logger: logger}
}

// CreateDocument logs the persisted slug and delegates to the wrapped writer.
func (w *LoggingWriter) CreateDocument(ctx context.Context, doc *kura.Document) (err error) {
	defer func(begin time.Time) {
		w.logger.Info("write",
			"slug", doc.Slug,
			"bytes", len(doc.Content),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return w.next.CreateDocument(ctx, doc)
}
