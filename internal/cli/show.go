package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/selector"
)

var showCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "show [migration...]",
	Short: "Print the parsed sections of migrations",
	RunE:  runShow,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	loader := newLoader(AppConfig)

	names, err := loader.List()
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	out := cmd.OutOrStdout()

	for _, src := range loader.Load(selector.Parse(args).Apply(names)) {
		fmt.Fprintf(out, "-- Migration %s\n", src.Name)

		for _, key := range src.Keys {
			fmt.Fprintf(out, "-- migrate: %s\n", key)

			for _, st := range src.Section(key) {
				fmt.Fprint(out, string(st))
			}
		}
	}

	return nil
}
