package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// querier is the part of *sql.Conn and *sql.Tx used by sqlSession.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sqlSession is a Session over database/sql. It pins a single *sql.Conn
// so session state (current database, temporary tables, in-memory SQLite
// databases) survives between calls.
type sqlSession struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	dialect Dialect
	logger  *slog.Logger
}

func newSQLSession(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*sqlSession, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &sqlSession{db: db, conn: conn, dialect: dialect, logger: logger}, nil
}

func (s *sqlSession) q() querier {
	if s.tx != nil {
		return s.tx
	}

	return s.conn
}

func (s *sqlSession) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrTransactionOpen
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	s.tx = tx
	s.logger.DebugContext(ctx, "transaction started", "driver", s.dialect.Name())

	return nil
}

func (s *sqlSession) Commit(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction committed", "driver", s.dialect.Name())

	return nil
}

func (s *sqlSession) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction rolled back", "driver", s.dialect.Name())

	return nil
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // callers report the statement alongside the driver error
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // some statements have no affected-row count
	}

	return n, nil
}

func (s *sqlSession) Fetch(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers report the query alongside the driver error
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}

	out := &Rows{Columns: make([]string, len(cols))}
	for i, c := range cols {
		out.Columns[i] = c.Name()
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		for i, v := range values {
			values[i] = normalize(cols[i].DatabaseTypeName(), v)
		}

		out.Values = append(out.Values, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return out, nil
}

func (s *sqlSession) Dialect() Dialect { return s.dialect }

func (s *sqlSession) Close(ctx context.Context) error {
	if s.tx != nil {
		if err := s.Rollback(ctx); err != nil {
			s.logger.WarnContext(ctx, "rollback on close failed", "error", err)
		}
	}

	connErr := s.conn.Close()
	dbErr := s.db.Close()

	if connErr != nil {
		return fmt.Errorf("closing connection: %w", connErr)
	}

	if dbErr != nil {
		return fmt.Errorf("closing database: %w", dbErr)
	}

	return nil
}

// normalize maps driver values onto the set the dumper understands:
// text columns become string, decimal columns become Decimal.
func normalize(dbType string, v any) any {
	decimal := isDecimalType(dbType)

	switch x := v.(type) {
	case []byte:
		if decimal {
			return Decimal(x)
		}

		return string(x)
	case float64:
		if decimal {
			return Decimal(strconv.FormatFloat(x, 'f', -1, 64))
		}

		return x
	case string:
		if decimal {
			return Decimal(x)
		}

		return x
	default:
		return v
	}
}

func isDecimalType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.HasPrefix(t, "DECIMAL") || strings.HasPrefix(t, "NUMERIC")
}
