package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

var recordCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "record [migration...]",
	Short: "Edit the ledger without running migrations",
	Long: `Mark pending migrations as applied without running them.

With --unset the named migrations are removed from the ledger instead.
With --update OLD the ledger row of OLD is renamed to the selected
migration and its hash refreshed, for migrations renamed on disk.`,
	RunE: runRecord,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addRecordFlags(recordCmd)
	rootCmd.AddCommand(recordCmd)
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("unset", false, "remove the named migrations from the ledger")
	cmd.Flags().String("update", "", "rename this ledger entry to the selected migration")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	dry := dryRun(cmd)
	out := cmd.OutOrStdout()

	w, err := connect(ctx, connectOpts{offline: dry})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	if unset, _ := cmd.Flags().GetBool("unset"); unset {
		for _, name := range args {
			if !dry {
				err := w.ledger.Unrecord(ctx, name)
				if errors.Is(err, ledger.ErrNotRecorded) {
					rt.logger.WarnContext(ctx, "migration not recorded", "name", name)
					continue
				}

				if err != nil {
					return fmt.Errorf("unrecording %s: %w", name, err)
				}
			}

			fmt.Fprintln(out, name)
		}

		return nil
	}

	batch, err := w.pending(ctx, selector.Parse(args))
	if err != nil {
		return err
	}

	update, _ := cmd.Flags().GetString("update")

	for _, src := range batch {
		switch {
		case dry:
		case update != "":
			if err := w.ledger.Rename(ctx, update, src.Name, src.Hash()); err != nil {
				return fmt.Errorf("renaming %s to %s: %w", update, src.Name, err)
			}
		default:
			if err := w.ledger.Record(ctx, src.Name, src.Hash()); err != nil {
				return fmt.Errorf("recording %s: %w", src.Name, err)
			}
		}

		fmt.Fprintln(out, src.Name)
	}

	return nil
}
