package ledger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

func TestReconciler_classify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newLedger(t)
	r := ledger.NewReconciler(l, slog.New(slog.DiscardHandler))

	applied := source(t, "202401010-a.sql", "CREATE TABLE a (id INT);\n")
	drifted := source(t, "202401020-b.sql", "CREATE TABLE b (id INT);\n")
	pending := source(t, "202401030-c.sql", "CREATE TABLE c (id INT);\n")

	require.NoError(t, l.Record(ctx, applied.Name, applied.Hash()))
	require.NoError(t, l.Record(ctx, drifted.Name, "stale"))

	tests := []struct {
		src  *migration.Source
		want ledger.Status
	}{
		{applied, ledger.StatusApplied},
		{drifted, ledger.StatusDrifted},
		{pending, ledger.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.src.Name, func(t *testing.T) {
			c, err := r.Classify(ctx, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Status)
			assert.Equal(t, tt.src.Hash(), c.Hash)
		})
	}
}

func TestReconciler_pendingWithoutTable(t *testing.T) {
	t.Parallel()

	s := newSession(t)
	l := ledger.New(s, slog.New(slog.DiscardHandler))
	r := ledger.NewReconciler(l, slog.New(slog.DiscardHandler))

	sources := []*migration.Source{
		source(t, "a.sql", "SELECT 1;\n"),
		source(t, "b.sql", "SELECT 2;\n"),
	}

	pending, err := r.Pending(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, sources, pending)
}

func TestReconciler_pendingSkipsAppliedAndDrifted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newLedger(t)
	r := ledger.NewReconciler(l, slog.New(slog.DiscardHandler))

	a := source(t, "a.sql", "SELECT 1;\n")
	b := source(t, "b.sql", "SELECT 2;\n")
	c := source(t, "c.sql", "SELECT 3;\n")

	require.NoError(t, l.Record(ctx, "a.sql", a.Hash()))
	require.NoError(t, l.Record(ctx, "b.sql", "stale"))

	pending, err := r.Pending(ctx, []*migration.Source{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []*migration.Source{c}, pending)
}

func TestReconciler_reportLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newLedger(t)
	r := ledger.NewReconciler(l, slog.New(slog.DiscardHandler))

	a := source(t, "a.sql", "SELECT 1;\n")
	b := source(t, "b.sql", "SELECT 2;\n")
	c := source(t, "c.sql", "SELECT 3;\n")

	require.NoError(t, l.Record(ctx, "a.sql", a.Hash()))
	require.NoError(t, l.Record(ctx, "b.sql", "stale"))

	report, err := r.Report(ctx, []*migration.Source{a, b, c})
	require.NoError(t, err)
	require.Len(t, report, 3)

	assert.Equal(t, "A a.sql 2024-01-02 03:04:06 "+a.Hash(), report[0].String())
	assert.Equal(t, "D b.sql 2024-01-02 03:04:07 "+b.Hash()+" stale", report[1].String())
	assert.Equal(t, "P c.sql "+c.Hash(), report[2].String())
}

func TestReconciler_missing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newLedger(t)
	r := ledger.NewReconciler(l, slog.New(slog.DiscardHandler))

	require.NoError(t, l.Record(ctx, "gone.sql", "hg"))
	require.NoError(t, l.Record(ctx, "kept.sql", "hk"))

	missing, err := r.Missing(ctx, []string{"kept.sql", "new.sql"})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "M gone.sql 2024-01-02 03:04:06 hg", missing[0].String())
}

func TestStatus_codes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "P", ledger.StatusPending.Code())
	assert.Equal(t, "A", ledger.StatusApplied.Code())
	assert.Equal(t, "D", ledger.StatusDrifted.Code())
	assert.Equal(t, "M", ledger.StatusMissing.Code())
	assert.Equal(t, "drifted", ledger.StatusDrifted.String())
}
