// Package logging builds the structured logger shared by every command.
package logging

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// TimeFormat is the timestamp layout of log records.
const TimeFormat = "2006-01-02 15:04:05.000"

// Level maps a -v count to a log level: warnings by default, info with
// one -v, debug with two or more.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// New returns a tint-backed logger writing to w. Colors are used only when
// color is true.
func New(w io.Writer, verbosity int, color bool) *slog.Logger {
	lvl := &slog.LevelVar{}
	lvl.Set(Level(verbosity))

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		NoColor:    !color,
		TimeFormat: TimeFormat,
	}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
