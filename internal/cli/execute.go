package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/dump"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

var executeCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "execute file...",
	Aliases: []string{"exec"},
	Short:   "Run migration files without recording them",
	Long: `Run the sections of arbitrary migration files, one transaction per
file, without touching the ledger. Sections are selected with --section
("-name" excludes a section, "*" keeps every section not excluded); by
default every section runs in file order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExecute,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addExecuteFlags(executeCmd)
	rootCmd.AddCommand(executeCmd)
}

func addExecuteFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("section", nil, "section to run, repeatable")
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	sections, _ := cmd.Flags().GetStringArray("section")

	w, err := connect(ctx, connectOpts{offline: dryRun(cmd)})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	tpl, err := readTemplate(w.cfg)
	if err != nil {
		return err
	}

	exec := executor.New(w.session, nil,
		executor.WithTemplate(tpl),
		executor.WithLogger(rt.logger),
		executor.WithProgressCallback(progressPrinter(cmd.OutOrStdout())),
	)

	var errs []error

	for _, path := range args {
		src, err := migration.ReadFile(rt.fs, path)
		if err != nil {
			rt.logger.ErrorContext(ctx, "load migration failed", "path", path, "error", err)
			errs = append(errs, err)

			continue
		}

		if err := exec.Execute(ctx, src, dump.Select(sections, sectionKeys(src, tpl))); err != nil {
			errs = append(errs, fmt.Errorf("executing %s: %w", path, err))
		}
	}

	return errors.Join(errs...)
}

// sectionKeys lists the sections of src followed by the template's own.
func sectionKeys(src, tpl *migration.Source) []string {
	keys := append([]string(nil), src.Keys...)

	if tpl == nil {
		return keys
	}

	for _, key := range tpl.Keys {
		if !src.Has(key) {
			keys = append(keys, key)
		}
	}

	return keys
}
