package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// MemoryDatabase opens a private in-memory SQLite database.
const MemoryDatabase = ":memory:"

// OpenSQLite opens a SQLite session on the database file at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (Session, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidDatabaseURL)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	return newSQLSession(ctx, db, SQLite, logger)
}
