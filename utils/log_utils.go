package utils

import (
	"io"
	"log/slog"

	"github.com/pterm/pterm"
)

// NewLogger returns a structured logger printing through pterm. A nil
// writer keeps pterm's default output.
func NewLogger(w io.Writer) *slog.Logger {
	logger := &pterm.DefaultLogger
	if w != nil {
		logger = pterm.DefaultLogger.WithWriter(w)
	}
	return slog.New(pterm.NewSlogHandler(logger))
}

// DiscardLogger drops every record, used by tests.
func DiscardLogger() *slog.Logger {
	return NewLogger(io.Discard)
}
