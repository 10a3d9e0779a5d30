package database

import (
	"context"
	"log/slog"
)

// NullSession accepts every call without touching a database. Statements
// are logged at debug level and queries return no rows. It backs dry runs
// and the "null" driver.
type NullSession struct {
	logger *slog.Logger
	open   bool
}

// NewNullSession returns a session that discards everything.
func NewNullSession(logger *slog.Logger) *NullSession {
	return &NullSession{logger: logger}
}

func (s *NullSession) Begin(ctx context.Context) error {
	if s.open {
		return ErrTransactionOpen
	}

	s.open = true
	s.logger.DebugContext(ctx, "null: begin")

	return nil
}

func (s *NullSession) Commit(ctx context.Context) error {
	if !s.open {
		return ErrNoTransaction
	}

	s.open = false
	s.logger.DebugContext(ctx, "null: commit")

	return nil
}

func (s *NullSession) Rollback(ctx context.Context) error {
	if !s.open {
		return ErrNoTransaction
	}

	s.open = false
	s.logger.DebugContext(ctx, "null: rollback")

	return nil
}

func (s *NullSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.logger.DebugContext(ctx, "null: exec", "query", query, "args", len(args))
	return 0, nil
}

func (s *NullSession) Fetch(ctx context.Context, query string, args ...any) (*Rows, error) {
	s.logger.DebugContext(ctx, "null: fetch", "query", query, "args", len(args))
	return &Rows{}, nil
}

func (s *NullSession) Dialect() Dialect { return MySQL }

func (s *NullSession) Close(context.Context) error { return nil }
