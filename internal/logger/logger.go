package logger

import (
	"io"
	"log/slog"
	"math"
)

// Service is attached to every record.
const Service = "ghd"

// New returns a text slog.Logger writing to w. Without verbose nothing is
// emitted, so a failed run still prints a single diagnostic line.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.Level(math.MaxInt)
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", Service)
}
