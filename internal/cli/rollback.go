package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

var rollbackCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "rollback migration...",
	Aliases: []string{"down"},
	Short:   "Roll back applied migrations",
	Long: `Run the down section of applied migrations, most recently applied
first, and remove them from the ledger. A filter is required; "1" rolls
back the last applied migration.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRollback,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addRollbackFlags(rollbackCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func addRollbackFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("single-transaction", false, "run the whole batch in one transaction")
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	w, err := connect(ctx, connectOpts{})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	entries, err := w.ledger.List(ctx, ledger.OrderByApplied, true)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	batch := w.loader.Load(selector.Parse(args).Apply(names))
	singleTx, _ := cmd.Flags().GetBool("single-transaction")

	return runBatch(ctx, cmd, w, executor.Down, batch, executor.WithSingleTransaction(singleTx))
}
