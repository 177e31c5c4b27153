// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger backed by a charmbracelet/log handler.
// slog and charmbracelet levels share their numeric values.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "moduni",
		Level:           log.Level(level),
		ReportTimestamp: level <= slog.LevelDebug,
	})
	return slog.New(handler)
}
