package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Backend names accepted by Open.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgsql"
	DriverSQLite   = "sqlite3"
	DriverNull     = "null"
)

// Dialect captures the SQL differences between backends: identifier
// quoting, placeholders, upserts, error classification and schema
// introspection.
type Dialect interface {
	// Name returns the backend name (one of the Driver constants).
	Name() string
	// QuoteIdent quotes a table, column or database name.
	QuoteIdent(name string) string
	// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// TimestampType is the column type used for timestamps.
	TimestampType() string
	// Upsert returns an INSERT of columns into table that updates the
	// non-key columns when a row with the same key already exists.
	Upsert(table, key string, columns ...string) string
	// IsUndefinedTable reports whether err means the queried table does not exist.
	IsUndefinedTable(err error) bool
	// AbortsTransactionOnError reports whether a failed statement poisons
	// the enclosing transaction until it is rolled back.
	AbortsTransactionOnError() bool
	// Tables lists the tables of the current database in name order.
	Tables(ctx context.Context, s Session) ([]string, error)
	// CreateTable returns the DDL that recreates table.
	CreateTable(ctx context.Context, s Session, table string) (string, error)
	// CreateDatabase returns the DDL that recreates the named database.
	CreateDatabase(ctx context.Context, s Session, name string) (string, error)
}

func placeholders(d Dialect, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.Placeholder(i + 1)
	}

	return strings.Join(ps, ", ")
}

func quoteAll(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}

	return strings.Join(quoted, ", ")
}

// conflictUpsert builds the "ON CONFLICT ... DO UPDATE" form shared by
// PostgreSQL and SQLite.
func conflictUpsert(d Dialect, table, key string, columns []string) string {
	var sets []string

	for _, c := range columns {
		if c == key {
			continue
		}

		sets = append(sets, fmt.Sprintf("%s = excluded.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		d.QuoteIdent(table), quoteAll(d, columns), placeholders(d, len(columns)),
		d.QuoteIdent(key), strings.Join(sets, ", "))
}

// fetchOne returns the first row of a query, or ErrNotFound.
func fetchOne(ctx context.Context, s Session, query string, args ...any) ([]any, error) {
	rows, err := s.Fetch(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if rows.Len() == 0 {
		return nil, ErrNotFound
	}

	return rows.Values[0], nil
}

func stringAt(row []any, col int) (string, error) {
	if col >= len(row) {
		return "", fmt.Errorf("column %d: %w", col, ErrNotFound)
	}

	switch v := row[col].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("column %d: unexpected type %T", col, row[col])
	}
}

// MySQL

type mysqlDialect struct{}

// MySQL is the dialect of MySQL and MariaDB.
var MySQL Dialect = mysqlDialect{} //nolint:gochecknoglobals // stateless dialect value

// mysqlNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlNoSuchTable = 1146

func (mysqlDialect) Name() string { return DriverMySQL }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) TimestampType() string { return "DATETIME" }

func (d mysqlDialect) Upsert(table, key string, columns ...string) string {
	var sets []string

	for _, c := range columns {
		if c == key {
			continue
		}

		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", d.QuoteIdent(c), d.QuoteIdent(c)))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		d.QuoteIdent(table), quoteAll(d, columns), placeholders(d, len(columns)), strings.Join(sets, ", "))
}

func (mysqlDialect) IsUndefinedTable(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlNoSuchTable
}

func (mysqlDialect) AbortsTransactionOnError() bool { return false }

func (mysqlDialect) Tables(ctx context.Context, s Session) ([]string, error) {
	rows, err := s.Fetch(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	return rows.Strings(0), nil
}

func (d mysqlDialect) CreateTable(ctx context.Context, s Session, table string) (string, error) {
	row, err := fetchOne(ctx, s, "SHOW CREATE TABLE "+d.QuoteIdent(table))
	if err != nil {
		return "", fmt.Errorf("showing create table %s: %w", table, err)
	}

	return stringAt(row, 1)
}

func (d mysqlDialect) CreateDatabase(ctx context.Context, s Session, name string) (string, error) {
	row, err := fetchOne(ctx, s, "SHOW CREATE DATABASE "+d.QuoteIdent(name))
	if err != nil {
		return "", fmt.Errorf("showing create database %s: %w", name, err)
	}

	return stringAt(row, 1)
}

// PostgreSQL

type postgresDialect struct{}

// Postgres is the dialect of PostgreSQL.
var Postgres Dialect = postgresDialect{} //nolint:gochecknoglobals // stateless dialect value

// pgUndefinedTable is SQLSTATE undefined_table.
const pgUndefinedTable = "42P01"

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) TimestampType() string { return "TIMESTAMP" }

func (d postgresDialect) Upsert(table, key string, columns ...string) string {
	return conflictUpsert(d, table, key, columns)
}

func (postgresDialect) IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

func (postgresDialect) AbortsTransactionOnError() bool { return true }

func (postgresDialect) Tables(ctx context.Context, s Session) ([]string, error) {
	rows, err := s.Fetch(ctx, `SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	return rows.Strings(0), nil
}

// CreateTable rebuilds the DDL from the catalog: columns with their
// types, defaults and nullability, then primary key and unique
// constraints. Indexes, triggers and foreign keys are not reproduced.
func (d postgresDialect) CreateTable(ctx context.Context, s Session, table string) (string, error) {
	regclass := d.QuoteIdent(table)

	cols, err := s.Fetch(ctx, `SELECT a.attname::text, format_type(a.atttypid, a.atttypmod),
			a.attnotnull, pg_get_expr(ad.adbin, ad.adrelid)
		FROM pg_attribute a
		LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
		WHERE a.attrelid = $1::regclass AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, regclass)
	if err != nil {
		return "", fmt.Errorf("reading columns of %s: %w", table, err)
	}

	if cols.Len() == 0 {
		return "", fmt.Errorf("table %s: %w", table, ErrNotFound)
	}

	var lines []string

	for _, row := range cols.Values {
		name, _ := row[0].(string)
		typ, _ := row[1].(string)
		line := "    " + d.QuoteIdent(name) + " " + typ

		if def, ok := row[3].(string); ok && def != "" {
			line += " DEFAULT " + def
		}

		if notNull, _ := row[2].(bool); notNull {
			line += " NOT NULL"
		}

		lines = append(lines, line)
	}

	cons, err := s.Fetch(ctx, `SELECT pg_get_constraintdef(c.oid)
		FROM pg_constraint c
		WHERE c.conrelid = $1::regclass AND c.contype IN ('p', 'u')
		ORDER BY c.contype, c.conname`, regclass)
	if err != nil {
		return "", fmt.Errorf("reading constraints of %s: %w", table, err)
	}

	for _, def := range cons.Strings(0) {
		lines = append(lines, "    "+def)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", regclass, strings.Join(lines, ",\n")), nil
}

func (d postgresDialect) CreateDatabase(ctx context.Context, s Session, name string) (string, error) {
	row, err := fetchOne(ctx, s,
		`SELECT pg_encoding_to_char(encoding)::text FROM pg_database WHERE datname = $1`, name)
	if err != nil {
		return "", fmt.Errorf("reading database %s: %w", name, err)
	}

	encoding, err := stringAt(row, 0)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("CREATE DATABASE %s ENCODING '%s'", d.QuoteIdent(name), encoding), nil
}

// SQLite

type sqliteDialect struct{}

// SQLite is the dialect of SQLite.
var SQLite Dialect = sqliteDialect{} //nolint:gochecknoglobals // stateless dialect value

func (sqliteDialect) Name() string { return DriverSQLite }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) TimestampType() string { return "DATETIME" }

func (d sqliteDialect) Upsert(table, key string, columns ...string) string {
	return conflictUpsert(d, table, key, columns)
}

func (sqliteDialect) IsUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func (sqliteDialect) AbortsTransactionOnError() bool { return false }

func (sqliteDialect) Tables(ctx context.Context, s Session) ([]string, error) {
	rows, err := s.Fetch(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	return rows.Strings(0), nil
}

func (sqliteDialect) CreateTable(ctx context.Context, s Session, table string) (string, error) {
	row, err := fetchOne(ctx, s, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return "", fmt.Errorf("reading schema of %s: %w", table, err)
	}

	return stringAt(row, 0)
}

func (sqliteDialect) CreateDatabase(context.Context, Session, string) (string, error) {
	return "", fmt.Errorf("create database: %w", ErrNotSupported)
}

// DialectFor returns the dialect of a backend name.
func DialectFor(driver string) (Dialect, error) {
	name, ok := CanonicalDriver(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	switch name {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return MySQL, nil
	}
}
