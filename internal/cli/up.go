package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/lint"
	"github.com/aqasim81/sqlmigrate/internal/migration"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

// errDangerousMigrations is returned when up is blocked by high/critical findings.
var errDangerousMigrations = errors.New("up aborted: dangerous migrations detected (use --force to override)")

var upCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "up [migration...]",
	Aliases: []string{"upgrade", "apply"},
	Short:   "Apply pending migrations",
	Long: `Apply the pending migrations of the migrations directory in name
order. Each migration runs in its own transaction unless
--single-transaction is set. The name of every committed migration is
printed.`,
	RunE: runUp,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addUpFlags(upCmd)
	rootCmd.AddCommand(upCmd)
}

func addUpFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("create-database", false, "create the database if it does not exist")
	cmd.Flags().Bool("single-transaction", false, "run the whole batch in one transaction")
	cmd.Flags().Bool("check", false, "lint the batch first and stop on high or critical findings")
	cmd.Flags().Bool("force", false, "apply even when --check reports high or critical findings")
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	createDatabase, _ := cmd.Flags().GetBool("create-database")

	w, err := connect(ctx, connectOpts{createDatabase: createDatabase})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	batch, err := w.pending(ctx, selector.Parse(args))
	if err != nil {
		return err
	}

	check, _ := cmd.Flags().GetBool("check")
	force, _ := cmd.Flags().GetBool("force")

	if check && !force && printReports(cmd.OutOrStdout(), lint.New().CheckAll(batch)) {
		return errDangerousMigrations
	}

	singleTx, _ := cmd.Flags().GetBool("single-transaction")

	return runBatch(ctx, cmd, w, executor.Up, batch, executor.WithSingleTransaction(singleTx))
}

// runBatch executes batch and prints each committed (or, in dry-run mode,
// planned) migration name.
func runBatch(
	ctx context.Context,
	cmd *cobra.Command,
	w *workspace,
	dir executor.Direction,
	batch []*migration.Source,
	opts ...executor.Option,
) error {
	tpl, err := readTemplate(w.cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	opts = append(opts,
		executor.WithTemplate(tpl),
		executor.WithDryRun(dryRun(cmd)),
		executor.WithLogger(rt.logger),
		executor.WithProgressCallback(progressPrinter(out)),
	)

	if _, err := executor.New(w.session, w.ledger, opts...).Run(ctx, dir, batch); err != nil {
		return fmt.Errorf("running migrations %s: %w", dir, err)
	}

	return nil
}

func progressPrinter(out io.Writer) func(executor.ProgressEvent) {
	return func(event executor.ProgressEvent) {
		switch event.Status {
		case executor.StatusCompleted, executor.StatusPlanned:
			fmt.Fprintln(out, event.Name)
			rt.logger.Info("migration done",
				"name", event.Name, "direction", string(event.Direction),
				"duration", event.Duration.Truncate(time.Millisecond))
		case executor.StatusFailed:
			rt.logger.Error("migration failed", "name", event.Name, "error", event.Error)
		case executor.StatusRolledBack:
			rt.logger.Warn("rolled back", "name", event.Name)
		}
	}
}
