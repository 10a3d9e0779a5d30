package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "status [migration...]",
	Aliases: []string{"st"},
	Short:   "Show migration status",
	Long: `Print one line per migration file:

  P <name> <hash>                          pending
  A <name> <applied> <hash>                applied
  D <name> <applied> <hash> <stored hash>  applied, file changed since

With --show-missings only ledger rows without a file are printed:

  M <name> <applied> <stored hash>`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addStatusFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func addStatusFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("show-missings", false, "list recorded migrations whose file is gone")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	w, err := connect(ctx, connectOpts{})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	names, err := w.loader.List()
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	var lines []ledger.Classification

	if showMissing, _ := cmd.Flags().GetBool("show-missings"); showMissing {
		lines, err = w.reconciler.Missing(ctx, names)
	} else {
		lines, err = w.reconciler.Report(ctx, w.loader.Load(selector.Parse(args).Apply(names)))
	}

	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, c := range lines {
		fmt.Fprintln(out, c.String())
	}

	return nil
}
