// Package dump regenerates migration files from a live database: schema
// definitions and, optionally, table contents.
package dump

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// DefaultNameFormat names split files from a counter and a table name.
const DefaultNameFormat = "%04d-%s.sql"

// CheckNameFormat renders a sample name with format and rejects verbs that
// do not match an int counter followed by a string table name.
func CheckNameFormat(format string) error {
	if strings.Contains(fmt.Sprintf(format, 1, "table"), "%!") {
		return fmt.Errorf("%w: %q", ErrInvalidNameFormat, format)
	}

	return nil
}

// databaseUnit is the table name used for the file holding the
// CREATE DATABASE statement in split mode.
const databaseUnit = "database"

const mayFailPrefix = "@"

// Option configures a Dumper.
type Option func(*Dumper)

// WithSplit writes one file per table into dir on fs instead of a single stream.
func WithSplit(fs vfs.FileSystem, dir string) Option {
	return func(d *Dumper) {
		d.fs = fs
		d.dir = dir
	}
}

// WithNameFormat sets the fmt format of split file names; it receives the
// counter and the table name.
func WithNameFormat(format string) Option {
	return func(d *Dumper) { d.nameFormat = format }
}

// WithCounter sets the first counter value of split file names.
func WithCounter(n int) Option {
	return func(d *Dumper) { d.counter = n }
}

// WithOverwrite allows split files to replace existing ones.
func WithOverwrite(b bool) Option {
	return func(d *Dumper) { d.overwrite = b }
}

// WithCreateDatabase emits the CREATE DATABASE statement of name first.
func WithCreateDatabase(name string) Option {
	return func(d *Dumper) { d.database = name }
}

// WithCreateTable toggles the table definitions (on by default).
func WithCreateTable(b bool) Option {
	return func(d *Dumper) { d.createTable = b }
}

// WithInsert toggles the table contents.
func WithInsert(b bool) Option {
	return func(d *Dumper) { d.insert = b }
}

// WithMayFail marks every emitted statement as may-fail.
func WithMayFail(b bool) Option {
	return func(d *Dumper) { d.mayFail = b }
}

// WithAddDown appends a down section undoing the dumped statements.
func WithAddDown(b bool) Option {
	return func(d *Dumper) { d.addDown = b }
}

// Dumper writes the schema and data of a database as migration files.
type Dumper struct {
	session     database.Session
	logger      *slog.Logger
	fs          vfs.FileSystem
	dir         string
	nameFormat  string
	counter     int
	overwrite   bool
	database    string
	createTable bool
	insert      bool
	mayFail     bool
	addDown     bool
}

// New creates a Dumper reading from session s.
func New(s database.Session, logger *slog.Logger, opts ...Option) *Dumper {
	d := &Dumper{
		session:     s,
		logger:      logger,
		nameFormat:  DefaultNameFormat,
		counter:     1,
		createTable: true,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// unit is the content of one output file.
type unit struct {
	up   []string
	down []string
}

func (u *unit) empty() bool { return len(u.up) == 0 && len(u.down) == 0 }

// render formats the unit as parser input: up statements, then the down
// statements in reverse order.
func (u *unit) render(addDown bool) string {
	var b strings.Builder

	if addDown {
		b.WriteString("-- migrate: up\n")
	}

	for _, s := range u.up {
		b.WriteString(s)
	}

	if addDown {
		b.WriteString("\n-- migrate: down\n")

		for i := len(u.down) - 1; i >= 0; i-- {
			b.WriteString(u.down[i])
		}
	}

	return b.String()
}

func (d *Dumper) split() bool { return d.fs != nil }

// Dump writes the selected tables. In stream mode everything goes to w;
// in split mode w is unused and the written file paths are returned.
func (d *Dumper) Dump(ctx context.Context, w io.Writer, selection []string) ([]string, error) {
	if d.split() {
		if err := CheckNameFormat(d.nameFormat); err != nil {
			return nil, err
		}
	}

	dialect := d.session.Dialect()

	existing, err := dialect.Tables(ctx, d.session)
	if err != nil {
		return nil, err
	}

	tables := Select(selection, existing)
	d.logger.DebugContext(ctx, "tables selected", "count", len(tables), "existing", len(existing))

	var (
		written []string
		stream  unit
	)

	emit := func(name string, u *unit) error {
		if !d.split() {
			stream.up = append(stream.up, u.up...)
			stream.down = append(stream.down, u.down...)

			return nil
		}

		counter := d.counter
		d.counter++

		if u.empty() {
			return nil
		}

		path, err := migration.WriteFile(d.fs, d.dir, fmt.Sprintf(d.nameFormat, counter, name), u.render(d.addDown), d.overwrite)
		if err != nil {
			return fmt.Errorf("writing dump of %s: %w", name, err)
		}

		d.logger.DebugContext(ctx, "dump file written", "path", path)
		written = append(written, path)

		return nil
	}

	if d.database != "" {
		u, err := d.databaseUnit(ctx)
		if err != nil {
			return nil, err
		}

		if err := emit(databaseUnit, u); err != nil {
			return nil, err
		}
	}

	for _, table := range tables {
		u, err := d.tableUnit(ctx, table)
		if err != nil {
			return nil, err
		}

		if err := emit(table, u); err != nil {
			return nil, err
		}
	}

	if d.split() {
		return written, nil
	}

	if _, err := io.WriteString(w, stream.render(d.addDown)); err != nil {
		return nil, fmt.Errorf("writing dump: %w", err)
	}

	return nil, nil
}

func (d *Dumper) prefix() string {
	if d.mayFail {
		return mayFailPrefix
	}

	return ""
}

func (d *Dumper) databaseUnit(ctx context.Context) (*unit, error) {
	dialect := d.session.Dialect()

	ddl, err := dialect.CreateDatabase(ctx, d.session, d.database)
	if err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "create schema database", "database", d.database)

	u := &unit{up: []string{fmt.Sprintf("-- Database: %s\n%s%s;\n", d.database, d.prefix(), ddl)}}
	u.down = []string{fmt.Sprintf("@DROP DATABASE %s;\n", dialect.QuoteIdent(d.database))}

	return u, nil
}

func (d *Dumper) tableUnit(ctx context.Context, table string) (*unit, error) {
	dialect := d.session.Dialect()
	quoted := dialect.QuoteIdent(table)
	u := &unit{}

	if d.createTable {
		ddl, err := dialect.CreateTable(ctx, d.session, table)
		if err != nil {
			return nil, err
		}

		d.logger.InfoContext(ctx, "create schema of table", "table", table)
		u.up = append(u.up, fmt.Sprintf("-- Table: %s\n%s%s;\n", table, d.prefix(), strings.TrimRight(ddl, "; \n")))
	}

	if d.insert {
		stmt, err := d.insertStatement(ctx, table)
		if err != nil {
			return nil, err
		}

		if stmt != "" {
			u.up = append(u.up, stmt)
		}
	}

	switch {
	case d.createTable:
		u.down = append(u.down, fmt.Sprintf("@DROP TABLE %s;\n", quoted))
	case d.insert:
		u.down = append(u.down, fmt.Sprintf(
			"-- You should probably add a WHERE clause on the next line\n@DELETE FROM %s;\n", quoted))
	}

	return u, nil
}

// insertStatement renders the rows of table as one INSERT with a row per
// line; it returns "" for an empty table.
func (d *Dumper) insertStatement(ctx context.Context, table string) (string, error) {
	dialect := d.session.Dialect()

	rows, err := d.session.Fetch(ctx, "SELECT * FROM "+dialect.QuoteIdent(table))
	if err != nil {
		return "", fmt.Errorf("reading rows of %s: %w", table, err)
	}

	if rows.Len() == 0 {
		return "", nil
	}

	d.logger.InfoContext(ctx, "insert into table", "table", table, "rows", rows.Len())

	var b strings.Builder

	fmt.Fprintf(&b, "%sINSERT INTO %s VALUES\n", d.prefix(), dialect.QuoteIdent(table))

	for i, row := range rows.Values {
		values := make([]string, len(row))

		for j, v := range row {
			lit, ok := Literal(dialect, v)
			if !ok {
				return "", &TypeError{Table: table, Column: column(rows, j), Value: v}
			}

			values[j] = lit
		}

		b.WriteString("(" + strings.Join(values, ", ") + ")")

		if i < rows.Len()-1 {
			b.WriteString(",\n")
		} else {
			b.WriteString(";\n")
		}
	}

	return b.String(), nil
}

func column(rows *database.Rows, i int) string {
	if i < len(rows.Columns) {
		return rows.Columns[i]
	}

	return fmt.Sprintf("#%d", i)
}
