package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPostgresPort = 5432
	maintenanceDatabase = "postgres"
	// A session pins one connection; the pool only manages its lifetime.
	postgresMaxConns = 1
)

// pgQuerier is the part of *pgxpool.Conn and pgx.Tx used by pgSession.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool creates a pgx connection pool for the given database URL and
// pings the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = postgresMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// postgresURL returns the connection URL for database db.
func postgresURL(p Params, db string) (string, error) {
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
		}

		if db != "" {
			u.Path = "/" + db
		}

		return u.String(), nil
	}

	port := p.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + db,
	}

	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}

	if p.Charset != "" {
		u.RawQuery = url.Values{"client_encoding": {p.Charset}}.Encode()
	}

	return u.String(), nil
}

func openPostgres(ctx context.Context, p Params, logger *slog.Logger) (Session, error) {
	if p.CreateDatabase && p.Database != "" {
		if err := ensurePostgresDatabase(ctx, p, logger); err != nil {
			return nil, err
		}
	}

	dsn, err := postgresURL(p, p.Database)
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &pgSession{pool: pool, conn: conn, logger: logger}, nil
}

// ensurePostgresDatabase creates the target database through the
// maintenance database when it does not exist yet.
func ensurePostgresDatabase(ctx context.Context, p Params, logger *slog.Logger) error {
	dsn, err := postgresURL(p, maintenanceDatabase)
	if err != nil {
		return err
	}

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", p.Database).Scan(&exists); err != nil {
		return fmt.Errorf("checking database %s: %w", p.Database, err)
	}

	if exists {
		return nil
	}

	if _, err := pool.Exec(ctx, "CREATE DATABASE "+Postgres.QuoteIdent(p.Database)); err != nil {
		return fmt.Errorf("creating database %s: %w", p.Database, err)
	}

	logger.InfoContext(ctx, "database created", "database", p.Database)

	return nil
}

// pgSession is a Session over one pooled pgx connection.
type pgSession struct {
	pool   *pgxpool.Pool
	conn   *pgxpool.Conn
	tx     pgx.Tx
	logger *slog.Logger
}

func (s *pgSession) q() pgQuerier {
	if s.tx != nil {
		return s.tx
	}

	return s.conn
}

func (s *pgSession) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrTransactionOpen
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	s.tx = tx
	s.logger.DebugContext(ctx, "transaction started", "driver", DriverPostgres)

	return nil
}

func (s *pgSession) Commit(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction committed", "driver", DriverPostgres)

	return nil
}

func (s *pgSession) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction rolled back", "driver", DriverPostgres)

	return nil
}

func (s *pgSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := s.q().Exec(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // callers report the statement alongside the driver error
	}

	return tag.RowsAffected(), nil
}

func (s *pgSession) Fetch(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := s.q().Query(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers report the query alongside the driver error
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := &Rows{Columns: make([]string, len(fields))}

	for i, f := range fields {
		out.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		for i, v := range values {
			values[i] = normalizePg(v)
		}

		out.Values = append(out.Values, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return out, nil
}

func (s *pgSession) Dialect() Dialect { return Postgres }

func (s *pgSession) Close(ctx context.Context) error {
	if s.tx != nil {
		if err := s.Rollback(ctx); err != nil {
			s.logger.WarnContext(ctx, "rollback on close failed", "error", err)
		}
	}

	s.conn.Release()
	s.pool.Close()

	return nil
}

// normalizePg maps pgx decoded values onto the set the dumper understands.
func normalizePg(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		dv, err := x.Value()
		if err != nil || dv == nil {
			return nil
		}

		if s, ok := dv.(string); ok {
			return Decimal(s)
		}

		return dv
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	default:
		return v
	}
}
