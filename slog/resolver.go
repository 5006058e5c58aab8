package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/kura"
)

// Ensure LoggingResolver implements kura.EncodingResolver.
var _ kura.EncodingResolver = (*LoggingResolver)(nil)

// LoggingResolver wraps an EncodingResolver and logs the chosen encoding.
type LoggingResolver struct {
	next   kura.EncodingResolver
	logger *slog.Logger
}

// NewLoggingResolver creates a new LoggingResolver.
func NewLoggingResolver(next kura.EncodingResolver, logger *slog.Logger) *LoggingResolver {
	return &LoggingResolver{next: next, logger: logger}
}

// Resolve delegates to the wrapped resolver. Lossy decodes are logged as
// warnings since they replace bytes in the output.
func (r *LoggingResolver) Resolve(raw []byte) (string, kura.Encoding) {
	text, enc := r.next.Resolve(raw)
	level := slog.LevelDebug
	if enc == kura.EncodingUTF8Lossy {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "decode", "encoding", string(enc), "bytes", len(raw))
	return text, enc
}
