package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/migration"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

// workspace bundles what a command needs to talk to the target database.
type workspace struct {
	cfg        *config.Config
	session    database.Session
	ledger     *ledger.Ledger
	reconciler *ledger.Reconciler
	loader     *migration.Loader
}

type connectOpts struct {
	createDatabase bool
	// offline replaces the configured driver by the null driver.
	offline bool
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

func newLoader(cfg *config.Config) *migration.Loader {
	return migration.NewLoader(rt.fs, cfg.Directory, rt.logger)
}

// connect validates the configuration and opens a session on the target.
func connect(ctx context.Context, opts connectOpts) (*workspace, error) {
	cfg := AppConfig

	if opts.offline {
		copied := *cfg
		copied.Driver = database.DriverNull
		cfg = &copied
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt.logger.InfoContext(ctx, "connecting",
		"driver", cfg.Driver, "host", cfg.Host, "database", cfg.Database, "url", config.RedactURL(cfg.URL))

	s, err := database.Open(ctx, cfg.Params(opts.createDatabase), rt.logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	l := ledger.New(s, rt.logger, ledger.WithTable(cfg.Table), ledger.WithClock(rt.now))

	return &workspace{
		cfg:        cfg,
		session:    s,
		ledger:     l,
		reconciler: ledger.NewReconciler(l, rt.logger),
		loader:     newLoader(cfg),
	}, nil
}

func (w *workspace) close(ctx context.Context) {
	if err := w.session.Close(ctx); err != nil {
		rt.logger.WarnContext(ctx, "closing session", "error", err)
	}
}

// pending returns the pending migrations on disk kept by filter.
func (w *workspace) pending(ctx context.Context, filter selector.Filter) ([]*migration.Source, error) {
	names, err := w.loader.List()
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	pending, err := w.reconciler.Pending(ctx, w.loader.Load(names))
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	return selectSources(filter, pending), nil
}

// readTemplate loads the configured template migration, if any.
func readTemplate(cfg *config.Config) (*migration.Source, error) {
	if cfg.Template == "" {
		return nil, nil //nolint:nilnil // no template configured
	}

	tpl, err := migration.ReadFile(rt.fs, cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}

	return tpl, nil
}

// selectSources applies filter to sources by name, keeping their order.
func selectSources(filter selector.Filter, sources []*migration.Source) []*migration.Source {
	byName := make(map[string]*migration.Source, len(sources))
	names := make([]string, 0, len(sources))

	for _, src := range sources {
		byName[src.Name] = src
		names = append(names, src.Name)
	}

	kept := filter.Apply(names)
	out := make([]*migration.Source, 0, len(kept))

	for _, name := range kept {
		out = append(out, byName[name])
	}

	return out
}
