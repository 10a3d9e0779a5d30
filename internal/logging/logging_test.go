package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/sqlmigrate/internal/logging"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbosity int
		want      slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{5, slog.LevelDebug},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, logging.Level(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestNew_filtersByVerbosity(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := logging.New(&buf, 0, false)
	logger.Info("hidden")
	logger.Warn("shown", "name", "0001-init.sql")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "name=0001-init.sql")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_debug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logging.New(&buf, 2, false).Debug("statement", "sql", "SELECT 1")
	assert.Contains(t, buf.String(), "statement")
}
