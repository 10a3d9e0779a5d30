package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// installSlug names the bootstrap migration when install gets no name.
const installSlug = "create-migrate-table"

var createCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "create name...",
	Short: "Create a new migration file",
	Long: `Create "<date><step>-<name>.sql" in the migrations directory with empty
up and down sections. Without a name only the file name is printed.`,
	RunE: runCreate,
}

var installCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "install [name...]",
	Short: "Create the migration that creates the ledger table",
	Long: `Write the first migration of a project: it creates the ledger table
for the configured driver and drops it on rollback. Apply it with "up".`,
	RunE: runInstall,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	for _, c := range []*cobra.Command{createCmd, installCmd} {
		addCreateFlags(c)
		rootCmd.AddCommand(c)
	}
}

func addCreateFlags(cmd *cobra.Command) {
	cmd.Flags().Int("step", 0, "step digit inserted after the date")
	cmd.Flags().String("date", "", "date prefix instead of today (YYYYMMDD)")
	cmd.Flags().BoolP("overwrite", "f", false, "replace an existing file")
}

func nameFromFlags(cmd *cobra.Command, slug string) string {
	step, _ := cmd.Flags().GetInt("step")
	date, _ := cmd.Flags().GetString("date")

	return migration.Name(slug, step, date, rt.now())
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := nameFromFlags(cmd, migration.Slug(args))
	fmt.Fprintln(cmd.OutOrStdout(), name)

	if len(args) == 0 {
		return nil
	}

	overwrite, _ := cmd.Flags().GetBool("overwrite")

	if _, err := migration.WriteFile(rt.fs, AppConfig.Directory, name, migration.EmptyTemplate, overwrite); err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	return nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	dialect, err := database.DialectFor(AppConfig.Driver)
	if err != nil {
		return fmt.Errorf("creating install migration: %w", err)
	}

	slug := installSlug
	if len(args) > 0 {
		slug = migration.Slug(args)
	}

	name := nameFromFlags(cmd, slug)
	fmt.Fprintln(cmd.OutOrStdout(), name)

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	content := ledger.InstallMigration(dialect, AppConfig.Table)

	if _, err := migration.WriteFile(rt.fs, AppConfig.Directory, name, content, overwrite); err != nil {
		return fmt.Errorf("creating install migration: %w", err)
	}

	return nil
}
