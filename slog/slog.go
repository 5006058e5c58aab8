// Package slog decorates kura services with structured logging.
package slog
