package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/lint"
	"github.com/aqasim81/sqlmigrate/internal/selector"
)

var checkCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "check [migration...]",
	Short: "Lint migrations with the PostgreSQL parser",
	Long: `Parse every statement of the selected migrations with the PostgreSQL
grammar and report statements that do not parse, that destroy data outside
a down section, that lock tables, or that cannot run in a transaction.`,
	RunE: runCheck,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addCheckFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

func addCheckFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fail-on-high", false, "exit with non-zero code if high/critical findings exist")
}

// errHighSeverityFindings is returned when --fail-on-high is set and high/critical findings exist.
var errHighSeverityFindings = errors.New("high or critical severity findings detected")

func runCheck(cmd *cobra.Command, args []string) error {
	loader := newLoader(AppConfig)

	names, err := loader.List()
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	sources := loader.Load(selector.Parse(args).Apply(names))
	if len(sources) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No migration files found.")
		return nil
	}

	hasHighOrCritical := printReports(cmd.OutOrStdout(), lint.New().CheckAll(sources))

	failOnHigh, _ := cmd.Flags().GetBool("fail-on-high")
	if failOnHigh && hasHighOrCritical {
		return errHighSeverityFindings
	}

	return nil
}

// printReports writes the findings of reports and reports whether any is
// high or critical.
func printReports(out io.Writer, reports []*lint.Report) bool {
	total := 0
	withFindings := 0
	hasHighOrCritical := false

	for _, r := range reports {
		if len(r.Findings) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n=== %s ===\n", r.Name)

		for _, f := range r.Findings {
			fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)

			if f.Table != "" {
				fmt.Fprintf(out, "    Table:   %s\n", f.Table)
			}

			fmt.Fprintf(out, "    Rule:    %s\n", f.Rule)
			fmt.Fprintf(out, "    Section: %s\n", f.Section)
			fmt.Fprintf(out, "    SQL:     %s\n\n", f.Statement)
		}

		total += len(r.Findings)
		withFindings++

		if r.HasHighOrCritical() {
			hasHighOrCritical = true
		}
	}

	if total == 0 {
		fmt.Fprintln(out, "No dangerous operations detected.")
	} else {
		fmt.Fprintf(out, "Found %d finding(s) across %d migration(s).\n", total, withFindings)
	}

	return hasHighOrCritical
}
