package database_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

func openMemory(t *testing.T) database.Session {
	t.Helper()

	ctx := context.Background()

	s, err := database.OpenSQLite(ctx, database.MemoryDatabase, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(ctx) })

	return s
}

func TestSQLiteSession_execAndFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := s.Exec(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score REAL)")
	require.NoError(t, err)

	n, err := s.Exec(ctx, "INSERT INTO users (id, name, score) VALUES (?, ?, ?), (?, ?, ?)",
		1, "ann", 1.5, 2, "bob", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.Fetch(ctx, "SELECT id, name, score FROM users ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, []any{int64(1), "ann", 1.5}, rows.Values[0])
	assert.Equal(t, []any{int64(2), "bob", nil}, rows.Values[1])
	assert.Equal(t, []string{"ann", "bob"}, rows.Strings(1))
}

func TestSQLiteSession_rollbackDiscardsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := s.Exec(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	require.NoError(t, s.Begin(ctx))
	_, err = s.Exec(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx))

	require.NoError(t, s.Begin(ctx))
	_, err = s.Exec(ctx, "INSERT INTO t VALUES (2)")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	rows, err := s.Fetch(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}}, rows.Values)
}

func TestSQLiteSession_transactionMisuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	require.ErrorIs(t, s.Commit(ctx), database.ErrNoTransaction)
	require.ErrorIs(t, s.Rollback(ctx), database.ErrNoTransaction)

	require.NoError(t, s.Begin(ctx))
	require.ErrorIs(t, s.Begin(ctx), database.ErrTransactionOpen)
	require.NoError(t, s.Rollback(ctx))
}

func TestSQLiteDialect_introspection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)
	d := s.Dialect()

	_, err := s.Exec(ctx, "CREATE TABLE orders (id INTEGER)")
	require.NoError(t, err)
	_, err = s.Exec(ctx, "CREATE TABLE users (id INTEGER)")
	require.NoError(t, err)

	tables, err := d.Tables(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)

	ddl, err := d.CreateTable(ctx, s, "users")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users (id INTEGER)", ddl)

	_, err = d.CreateTable(ctx, s, "nope")
	require.ErrorIs(t, err, database.ErrNotFound)

	_, err = d.CreateDatabase(ctx, s, "main")
	require.ErrorIs(t, err, database.ErrNotSupported)
}

func TestSQLiteDialect_isUndefinedTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := s.Fetch(ctx, "SELECT * FROM missing")
	require.Error(t, err)
	assert.True(t, s.Dialect().IsUndefinedTable(err))
	assert.False(t, s.Dialect().IsUndefinedTable(nil))
}

func TestSQLiteDialect_upsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)
	d := s.Dialect()

	_, err := s.Exec(ctx, "CREATE TABLE kv (k TEXT, v TEXT, UNIQUE(k))")
	require.NoError(t, err)

	upsert := d.Upsert("kv", "k", "k", "v")

	_, err = s.Exec(ctx, upsert, "a", "1")
	require.NoError(t, err)
	_, err = s.Exec(ctx, upsert, "a", "2")
	require.NoError(t, err)

	rows, err := s.Fetch(ctx, "SELECT k, v FROM kv")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "2"}}, rows.Values)
}
