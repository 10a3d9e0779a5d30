//go:build integration

package integration

import (
	"bytes"
	"context"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/dump"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

const productsQuery = "SELECT id, name, price, note, created FROM products ORDER BY id"

func TestDump_roundTrip(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := Open(t, b.setup(t))

			for _, stmt := range []string{
				"CREATE TABLE products (id INTEGER PRIMARY KEY, name VARCHAR(50), price NUMERIC(10,2), note TEXT, created TIMESTAMP NULL)",
				"INSERT INTO products VALUES (1, 'it''s', 12.50, NULL, '2024-01-02 03:04:05')",
				"INSERT INTO products VALUES (2, 'plain', 0.99, 'two', NULL)",
			} {
				_, err := s.Exec(ctx, stmt)
				require.NoError(t, err)
			}

			before, err := s.Fetch(ctx, productsQuery)
			require.NoError(t, err)
			require.Equal(t, 2, before.Len())
			assert.Equal(t, database.Decimal("12.50"), before.Values[0][2])

			var buf bytes.Buffer

			_, err = dump.New(s, testLogger(), dump.WithInsert(true), dump.WithAddDown(true)).
				Dump(ctx, &buf, []string{"products"})
			require.NoError(t, err)

			src, err := migration.Parse("dump.sql", &buf)
			require.NoError(t, err)
			require.Len(t, src.Section(migration.SectionUp), 2)

			exec := executor.New(s, nil, executor.WithLogger(testLogger()))
			require.NoError(t, exec.Execute(ctx, src, []string{migration.SectionDown}))

			tables, err := s.Dialect().Tables(ctx, s)
			require.NoError(t, err)
			require.NotContains(t, tables, "products")

			require.NoError(t, exec.Execute(ctx, src, []string{migration.SectionUp}))

			after, err := s.Fetch(ctx, productsQuery)
			require.NoError(t, err)
			assert.Equal(t, before.Values, after.Values)
		})
	}
}

func TestDump_createDatabase(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := Open(t, b.setup(t))

			var buf bytes.Buffer

			_, err := dump.New(s, testLogger(), dump.WithCreateDatabase(testDB), dump.WithAddDown(true)).
				Dump(ctx, &buf, nil)
			require.NoError(t, err)

			src, err := migration.Parse("dump.sql", &buf)
			require.NoError(t, err)

			up := src.Section(migration.SectionUp)
			require.NotEmpty(t, up)
			assert.Contains(t, up[0].SQL(), "CREATE DATABASE")
			assert.Contains(t, string(src.Section(migration.SectionDown)[0]), "@DROP DATABASE")
		})
	}
}

func TestDump_splitCreateDatabaseTakesFirstCounter(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := Open(t, b.setup(t))

			_, err := s.Exec(ctx, "CREATE TABLE widgets (id INT)")
			require.NoError(t, err)

			written, err := dump.New(s, testLogger(),
				dump.WithSplit(memoryfs.New(), "/out"), dump.WithCreateDatabase(testDB)).
				Dump(ctx, nil, []string{"widgets"})
			require.NoError(t, err)

			assert.Equal(t, []string{"/out/0001-database.sql", "/out/0002-widgets.sql"}, written)
		})
	}
}
