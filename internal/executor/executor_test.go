package executor_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

func setup(t *testing.T) (database.Session, *ledger.Ledger) {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	s, err := database.OpenSQLite(ctx, database.MemoryDatabase, logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(ctx) })

	_, err = s.Exec(ctx, ledger.CreateTableSQL(s.Dialect(), ledger.DefaultTable))
	require.NoError(t, err)

	return s, ledger.New(s, logger)
}

// batch returns five migrations creating tables t1..t5; migration number
// failing (1-based, 0 for none) contains an invalid statement.
func batch(t *testing.T, failing int) []*migration.Source {
	t.Helper()

	var out []*migration.Source

	for i := 1; i <= 5; i++ {
		up := fmt.Sprintf("CREATE TABLE t%d (id INTEGER);\n", i)
		if i == failing {
			up += "THIS IS NOT SQL;\n"
		}

		content := "-- migrate: up\n" + up + fmt.Sprintf("-- migrate: down\nDROP TABLE t%d;\n", i)

		src, err := migration.Parse(fmt.Sprintf("2024010%d0-m%d.sql", i, i), strings.NewReader(content))
		require.NoError(t, err)

		out = append(out, src)
	}

	return out
}

func tables(t *testing.T, s database.Session) []string {
	t.Helper()

	names, err := s.Dialect().Tables(context.Background(), s)
	require.NoError(t, err)

	return names
}

func recorded(t *testing.T, l *ledger.Ledger) []string {
	t.Helper()

	entries, err := l.List(context.Background(), ledger.OrderByName, false)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	return names
}

func TestRun_failureStopsBatch_perMigration(t *testing.T) {
	t.Parallel()

	s, l := setup(t)
	b := batch(t, 3)

	var completed []string

	e := executor.New(s, l, executor.WithProgressCallback(func(ev executor.ProgressEvent) {
		if ev.Status == executor.StatusCompleted {
			completed = append(completed, ev.Name)
		}
	}))

	names, err := e.Run(context.Background(), executor.Up, b)

	var stmtErr *executor.StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, b[2].Name, stmtErr.Migration)

	assert.Equal(t, []string{b[0].Name, b[1].Name}, names)
	assert.Equal(t, names, completed)
	assert.Equal(t, []string{b[0].Name, b[1].Name}, recorded(t, l))
	assert.Equal(t, []string{ledger.DefaultTable, "t1", "t2"}, tables(t, s))
	assert.Equal(t, executor.StateRolledBack, e.State())
}

func TestRun_failureStopsBatch_singleTransaction(t *testing.T) {
	t.Parallel()

	s, l := setup(t)
	b := batch(t, 3)

	var completed []string

	e := executor.New(s, l,
		executor.WithSingleTransaction(true),
		executor.WithProgressCallback(func(ev executor.ProgressEvent) {
			if ev.Status == executor.StatusCompleted {
				completed = append(completed, ev.Name)
			}
		}))

	names, err := e.Run(context.Background(), executor.Up, b)

	require.ErrorIs(t, err, executor.ErrExecutionFailed)
	assert.Empty(t, names)
	assert.Empty(t, completed)
	assert.Empty(t, recorded(t, l))
	assert.Equal(t, []string{ledger.DefaultTable}, tables(t, s))
}

func TestRun_singleTransactionEmitsAfterCommit(t *testing.T) {
	t.Parallel()

	s, l := setup(t)
	b := batch(t, 0)

	var statuses []string

	e := executor.New(s, l,
		executor.WithSingleTransaction(true),
		executor.WithProgressCallback(func(ev executor.ProgressEvent) {
			statuses = append(statuses, ev.Status)
		}))

	names, err := e.Run(context.Background(), executor.Up, b)
	require.NoError(t, err)
	assert.Len(t, names, 5)

	want := make([]string, 0, 10)
	for range b {
		want = append(want, executor.StatusStarting)
	}

	for range b {
		want = append(want, executor.StatusCompleted)
	}

	assert.Equal(t, want, statuses)
	assert.Equal(t, executor.StateCommitted, e.State())
}

func TestRun_upThenDownRestoresLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, l := setup(t)
	b := batch(t, 0)

	before := recorded(t, l)

	names, err := executor.New(s, l).Run(ctx, executor.Up, b)
	require.NoError(t, err)
	assert.Len(t, names, 5)
	assert.Len(t, recorded(t, l), 5)

	reversed := make([]*migration.Source, len(b))
	for i, src := range b {
		reversed[len(b)-1-i] = src
	}

	names, err = executor.New(s, l).Run(ctx, executor.Down, reversed)
	require.NoError(t, err)
	assert.Equal(t, b[4].Name, names[0])

	assert.Equal(t, before, recorded(t, l))
	assert.Equal(t, []string{ledger.DefaultTable}, tables(t, s))
}

func TestRun_mayFailDoesNotAbort(t *testing.T) {
	t.Parallel()

	s, l := setup(t)

	src, err := migration.Parse("202401010-m.sql", strings.NewReader(`-- migrate: up
@DROP TABLE does_not_exist;
CREATE TABLE kept (id INTEGER);
`))
	require.NoError(t, err)

	names, err := executor.New(s, l).Run(context.Background(), executor.Up, []*migration.Source{src})

	require.NoError(t, err)
	assert.Equal(t, []string{src.Name}, names)
	assert.Contains(t, tables(t, s), "kept")
}
