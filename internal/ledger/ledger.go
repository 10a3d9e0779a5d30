// Package ledger persists which migrations have been applied, and
// reconciles that record against the migration files on disk.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

const (
	colName    = "name"
	colApplied = "applied"
	colHash    = "hash"
)

// TimeFormat is how applied timestamps are printed.
const TimeFormat = "2006-01-02 15:04:05"

// Entry is one ledger row.
type Entry struct {
	Name    string
	Applied time.Time
	Hash    string
}

// Lookup is the result of looking a migration up in the ledger.
type Lookup struct {
	Entry Entry
	// Found is true when a row exists for the name.
	Found bool
	// TableMissing is true when the ledger table does not exist yet.
	TableMissing bool
}

// Order selects the List ordering column.
type Order string

// Supported List orderings.
const (
	OrderByApplied Order = colApplied
	OrderByName    Order = colName
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source used to stamp recorded migrations.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithTable sets the ledger table name.
func WithTable(table string) Option {
	return func(l *Ledger) { l.table = table }
}

// Ledger manages the applied-migrations table through a Session.
type Ledger struct {
	session database.Session
	table   string
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Ledger on session s.
func New(s database.Session, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		session: s,
		table:   DefaultTable,
		now:     time.Now,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Table returns the ledger table name.
func (l *Ledger) Table() string { return l.table }

func (l *Ledger) dialect() database.Dialect { return l.session.Dialect() }

func (l *Ledger) quoted() string { return l.dialect().QuoteIdent(l.table) }

func (l *Ledger) columns() string {
	d := l.dialect()
	return d.QuoteIdent(colName) + ", " + d.QuoteIdent(colApplied) + ", " + d.QuoteIdent(colHash)
}

// Record inserts or refreshes the row of name with hash and the current time.
func (l *Ledger) Record(ctx context.Context, name, hash string) error {
	applied := l.now().UTC().Truncate(time.Second)
	query := l.dialect().Upsert(l.table, colName, colName, colApplied, colHash)

	l.logger.DebugContext(ctx, "recording migration", "name", name, "hash", hash)

	if _, err := l.session.Exec(ctx, query, name, applied, hash); err != nil {
		return fmt.Errorf("recording migration %s: %w", name, err)
	}

	return nil
}

// Unrecord deletes the row of name.
func (l *Ledger) Unrecord(ctx context.Context, name string) error {
	d := l.dialect()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", l.quoted(), d.QuoteIdent(colName), d.Placeholder(1))

	l.logger.DebugContext(ctx, "removing migration", "name", name)

	n, err := l.session.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("removing migration %s: %w", name, err)
	}

	if n == 0 {
		return fmt.Errorf("removing migration %s: %w", name, ErrNotRecorded)
	}

	return nil
}

// Rename rewrites the name and hash of the row of oldName.
func (l *Ledger) Rename(ctx context.Context, oldName, newName, hash string) error {
	d := l.dialect()
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		l.quoted(),
		d.QuoteIdent(colName), d.Placeholder(1),
		d.QuoteIdent(colHash), d.Placeholder(2),
		d.QuoteIdent(colName), d.Placeholder(3))

	l.logger.DebugContext(ctx, "renaming migration", "from", oldName, "to", newName, "hash", hash)

	n, err := l.session.Exec(ctx, query, newName, hash, oldName)
	if err != nil {
		return fmt.Errorf("renaming migration %s to %s: %w", oldName, newName, err)
	}

	if n == 0 {
		return fmt.Errorf("renaming migration %s: %w", oldName, ErrNotRecorded)
	}

	return nil
}

// List returns every ledger row ordered by order, with name as the tie
// breaker, both descending when desc is set.
func (l *Ledger) List(ctx context.Context, order Order, desc bool) ([]Entry, error) {
	if order != OrderByApplied && order != OrderByName {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, order)
	}

	d := l.dialect()
	dir := "ASC"

	if desc {
		dir = "DESC"
	}

	orderBy := d.QuoteIdent(string(order)) + " " + dir
	if order != OrderByName {
		orderBy += ", " + d.QuoteIdent(colName) + " " + dir
	}

	rows, err := l.session.Fetch(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", l.columns(), l.quoted(), orderBy))
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	return scanEntries(rows)
}

// Lookup finds the row of name. A missing ledger table is reported in
// the result, not as an error.
func (l *Ledger) Lookup(ctx context.Context, name string) (Lookup, error) {
	d := l.dialect()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		l.columns(), l.quoted(), d.QuoteIdent(colName), d.Placeholder(1))

	rows, err := l.session.Fetch(ctx, query, name)
	if err != nil {
		if d.IsUndefinedTable(err) {
			return Lookup{TableMissing: true}, nil
		}

		return Lookup{}, fmt.Errorf("looking up migration %s: %w", name, err)
	}

	entries, err := scanEntries(rows)
	if err != nil {
		return Lookup{}, err
	}

	if len(entries) == 0 {
		return Lookup{}, nil
	}

	return Lookup{Entry: entries[0], Found: true}, nil
}

func scanEntries(rows *database.Rows) ([]Entry, error) {
	entries := make([]Entry, 0, rows.Len())

	for _, row := range rows.Values {
		if len(row) != 3 { //nolint:mnd // name, applied, hash
			return nil, fmt.Errorf("ledger row has %d columns, want 3", len(row))
		}

		name, err := asString(row[0])
		if err != nil {
			return nil, fmt.Errorf("reading name: %w", err)
		}

		applied, err := asTime(row[1])
		if err != nil {
			return nil, fmt.Errorf("reading applied time of %s: %w", name, err)
		}

		hash, err := asString(row[2])
		if err != nil {
			return nil, fmt.Errorf("reading hash of %s: %w", name, err)
		}

		entries = append(entries, Entry{Name: name, Applied: applied, Hash: hash})
	}

	return entries, nil
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

// timeLayouts are the textual forms drivers use for timestamps they do
// not decode themselves.
var timeLayouts = []string{ //nolint:gochecknoglobals // read-only lookup table
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	TimeFormat,
}

func asTime(v any) (time.Time, error) {
	var s string

	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}

	s = strings.TrimSpace(s)

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
