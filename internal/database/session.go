// Package database provides the Session capability used by the migration
// core: a single connection with explicit transaction control, plus the
// Dialect describing how to speak to the backend behind it.
package database

import (
	"context"
)

// Session is one connection to a target database. It holds at most one
// open transaction; Exec and Fetch run inside it when one is open.
// Sessions are not safe for concurrent use.
type Session interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Fetch(ctx context.Context, query string, args ...any) (*Rows, error)
	Dialect() Dialect
	Close(ctx context.Context) error
}

// Rows is a fully read query result.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}

	return len(r.Values)
}

// Strings returns column col of every row as strings. Non-string values
// are skipped.
func (r *Rows) Strings(col int) []string {
	if r == nil {
		return nil
	}

	out := make([]string, 0, len(r.Values))

	for _, row := range r.Values {
		if col >= len(row) {
			continue
		}

		if s, ok := row[col].(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// Decimal is a fixed-point number in its exact textual form. Sessions
// return DECIMAL/NUMERIC columns as Decimal so they are never rounded
// through float64.
type Decimal string
