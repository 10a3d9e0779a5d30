package dump_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/dump"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

func newDB(t *testing.T) database.Session {
	t.Helper()

	ctx := context.Background()

	s, err := database.OpenSQLite(ctx, database.MemoryDatabase, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(ctx) })

	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, note TEXT)",
		"INSERT INTO users VALUES (1, 'ann'), (2, 'o''brien')",
		"INSERT INTO orders VALUES (10, 1, NULL)",
	} {
		_, err := s.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	return s
}

func dumpString(t *testing.T, s database.Session, selection []string, opts ...dump.Option) string {
	t.Helper()

	var buf bytes.Buffer

	_, err := dump.New(s, slog.New(slog.DiscardHandler), opts...).Dump(context.Background(), &buf, selection)
	require.NoError(t, err)

	return buf.String()
}

func TestDump_schemaOnly(t *testing.T) {
	t.Parallel()

	got := dumpString(t, newDB(t), nil)

	assert.Equal(t, `-- Table: orders
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, note TEXT);
-- Table: users
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
`, got)
}

func TestDump_excludedTable(t *testing.T) {
	t.Parallel()

	got := dumpString(t, newDB(t), []string{"-users"})

	assert.Contains(t, got, "CREATE TABLE orders")
	assert.NotContains(t, got, "users")
}

func TestDump_dataWithDown(t *testing.T) {
	t.Parallel()

	got := dumpString(t, newDB(t), []string{"users"},
		dump.WithCreateTable(false), dump.WithInsert(true), dump.WithAddDown(true), dump.WithMayFail(true))

	assert.Equal(t, `-- migrate: up
@INSERT INTO "users" VALUES
(1, 'ann'),
(2, 'o''brien');

-- migrate: down
-- You should probably add a WHERE clause on the next line
@DELETE FROM "users";
`, got)
}

func TestDump_outputIsParsable(t *testing.T) {
	t.Parallel()

	got := dumpString(t, newDB(t), nil, dump.WithInsert(true), dump.WithAddDown(true))

	src, err := migration.Parse("dump.sql", strings.NewReader(got))
	require.NoError(t, err)

	up := src.Section(migration.SectionUp)
	down := src.Section(migration.SectionDown)

	require.Len(t, up, 4)
	assert.True(t, strings.HasPrefix(string(up[0]), "CREATE TABLE orders"))
	assert.True(t, strings.HasPrefix(string(up[1]), `INSERT INTO "orders" VALUES`))
	assert.True(t, strings.HasPrefix(string(up[2]), "CREATE TABLE users"))
	assert.True(t, strings.HasPrefix(string(up[3]), `INSERT INTO "users" VALUES`))

	require.Len(t, down, 2)
	assert.Equal(t, "@DROP TABLE \"users\";\n", string(down[0]))
	assert.Equal(t, "@DROP TABLE \"orders\";\n", string(down[1]))
	assert.True(t, down[0].MayFail())
}

func TestDump_roundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	got := dumpString(t, newDB(t), nil, dump.WithInsert(true))

	src, err := migration.Parse("dump.sql", strings.NewReader(got))
	require.NoError(t, err)

	target, err := database.OpenSQLite(ctx, database.MemoryDatabase, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	defer func() { _ = target.Close(ctx) }()

	for _, st := range src.Section(migration.SectionUp) {
		_, err := target.Exec(ctx, st.SQL())
		require.NoError(t, err, st.SQL())
	}

	rows, err := target.Fetch(ctx, "SELECT name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "o'brien"}, rows.Strings(0))
}

func TestDump_roundTrip_semicolonInValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newDB(t)

	for _, stmt := range []string{
		"CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)",
		"INSERT INTO notes VALUES (1, 'stop; -- here'), (2, 'b;'), (3, 'end;--')",
	} {
		_, err := s.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	got := dumpString(t, s, []string{"notes"}, dump.WithInsert(true))

	src, err := migration.Parse("dump.sql", strings.NewReader(got))
	require.NoError(t, err)

	up := src.Section(migration.SectionUp)
	require.Len(t, up, 2, got)

	target, err := database.OpenSQLite(ctx, database.MemoryDatabase, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	defer func() { _ = target.Close(ctx) }()

	for _, st := range up {
		_, err := target.Exec(ctx, st.SQL())
		require.NoError(t, err, st.SQL())
	}

	rows, err := target.Fetch(ctx, "SELECT body FROM notes ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"stop; -- here", "b;", "end;--"}, rows.Strings(0))
}

func TestLiteral_keepsMultiRowInsertWhole(t *testing.T) {
	t.Parallel()

	for _, d := range []database.Dialect{database.MySQL, database.Postgres, database.SQLite} {
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			lit, ok := dump.Literal(d, "stop;  -- here")
			require.True(t, ok)

			src, err := migration.Parse("x.sql", strings.NewReader("INSERT INTO t VALUES\n(1, "+lit+"),\n(2, 'b');\n"))
			require.NoError(t, err)
			assert.Len(t, src.Section(migration.SectionUp), 1)
		})
	}
}

func TestDump_split(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()

	d := dump.New(newDB(t), slog.New(slog.DiscardHandler),
		dump.WithSplit(fs, "/out"), dump.WithCounter(5), dump.WithAddDown(true))

	written, err := d.Dump(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/0005-orders.sql", "/out/0006-users.sql"}, written)

	content, err := vfs.ReadFile(fs, "/out/0006-users.sql")
	require.NoError(t, err)

	src, err := migration.Parse("0006-users.sql", bytes.NewReader(content))
	require.NoError(t, err)
	require.Len(t, src.Section(migration.SectionUp), 1)
	assert.Equal(t, "@DROP TABLE \"users\";\n", string(src.Section(migration.SectionDown)[0]))
}

func TestCheckNameFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{dump.DefaultNameFormat, false},
		{"%d_%s.sql", false},
		{"%s-%d.sql", true},
		{"%04d.sql", true},
		{"%d-%s-%s.sql", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			err := dump.CheckNameFormat(tt.format)
			if tt.wantErr {
				require.ErrorIs(t, err, dump.ErrInvalidNameFormat)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDump_splitRejectsBadNameFormat(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()

	d := dump.New(newDB(t), slog.New(slog.DiscardHandler),
		dump.WithSplit(fs, "/out"), dump.WithNameFormat("%s-%d.sql"))

	_, err := d.Dump(context.Background(), nil, nil)
	require.ErrorIs(t, err, dump.ErrInvalidNameFormat)

	_, err = fs.Stat("/out")
	assert.Error(t, err)
}

func TestDump_splitRefusesToOverwrite(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()
	s := newDB(t)

	_, err := dump.New(s, slog.New(slog.DiscardHandler), dump.WithSplit(fs, "/out")).
		Dump(context.Background(), nil, []string{"users"})
	require.NoError(t, err)

	_, err = dump.New(s, slog.New(slog.DiscardHandler), dump.WithSplit(fs, "/out")).
		Dump(context.Background(), nil, []string{"users"})
	require.ErrorIs(t, err, migration.ErrFileExists)

	_, err = dump.New(s, slog.New(slog.DiscardHandler), dump.WithSplit(fs, "/out"), dump.WithOverwrite(true)).
		Dump(context.Background(), nil, []string{"users"})
	require.NoError(t, err)
}

func TestDump_createDatabaseUnsupported(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := dump.New(newDB(t), slog.New(slog.DiscardHandler), dump.WithCreateDatabase("main")).
		Dump(context.Background(), &buf, nil)
	require.ErrorIs(t, err, database.ErrNotSupported)
}

// valuesSession returns a fixed row set for every query.
type valuesSession struct {
	database.NullSession
	rows *database.Rows
}

func (v *valuesSession) Fetch(context.Context, string, ...any) (*database.Rows, error) {
	return v.rows, nil
}

func (v *valuesSession) Dialect() database.Dialect { return fixedTables{database.MySQL} }

// fixedTables reports a single table named "t".
type fixedTables struct{ database.Dialect }

func (fixedTables) Tables(context.Context, database.Session) ([]string, error) {
	return []string{"t"}, nil
}

func TestDump_unsupportedValueIsTypeError(t *testing.T) {
	t.Parallel()

	s := &valuesSession{rows: &database.Rows{
		Columns: []string{"id", "tags"},
		Values:  [][]any{{int64(1), []string{"a"}}},
	}}

	var buf bytes.Buffer

	_, err := dump.New(s, slog.New(slog.DiscardHandler), dump.WithCreateTable(false), dump.WithInsert(true)).
		Dump(context.Background(), &buf, nil)

	var typeErr *dump.TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "t", typeErr.Table)
	assert.Equal(t, "tags", typeErr.Column)
	assert.Empty(t, buf.String())
}
