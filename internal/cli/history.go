package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/ledger"
)

var historyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "history",
	Short: "List the ledger",
	Long: `Print every recorded migration with the time it was applied and the
hash of its content, most recent first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addHistoryFlags(historyCmd)
	rootCmd.AddCommand(historyCmd)
}

func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("order-by", string(ledger.OrderByApplied), "sort column: applied or name")
	cmd.Flags().Bool("asc", false, "sort in ascending order")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	orderBy, _ := cmd.Flags().GetString("order-by")
	asc, _ := cmd.Flags().GetBool("asc")

	w, err := connect(ctx, connectOpts{})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	entries, err := w.ledger.List(ctx, ledger.Order(orderBy), !asc)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	data := make([][]string, 0, len(entries))
	for _, e := range entries {
		data = append(data, []string{e.Name, e.Applied.Format(ledger.TimeFormat), e.Hash})
	}

	if err := renderTable([]string{"Name", "Applied", "Hash"}, data, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("rendering history: %w", err)
	}

	return nil
}
