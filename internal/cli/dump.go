package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/dump"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

var dumpCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "dump [table...]",
	Short: "Dump the schema and data as migrations",
	Long: `Write the schema (and with --insert the rows) of the selected tables as
migration statements. Tables are selected by name; "-name" excludes a
table and "*" selects every table not excluded. No selection dumps
everything.

With --split one migration file per table is written to the migrations
directory, named after --fmt and --counter.`,
	RunE: runDump,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addDumpFlags(dumpCmd)
	rootCmd.AddCommand(dumpCmd)
}

func addDumpFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("file", "o", "", "write to this file instead of stdout")
	f.Bool("split", false, "write one file per table to the migrations directory")
	f.String("fmt", dump.DefaultNameFormat, "file name format for --split, from the counter and table name")
	f.IntP("counter", "c", 1, "first counter value for --split")
	f.BoolP("overwrite", "f", false, "replace existing files")
	f.Bool("create-database", false, "start with a CREATE DATABASE statement")
	f.Bool("create-table", true, "dump CREATE TABLE statements")
	f.Bool("insert", false, "dump table rows as INSERT statements")
	f.Bool("may-fail", false, "mark every statement as may-fail")
	f.Bool("add-down", false, "add a down section that reverts the dump")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	f := cmd.Flags()

	nameFormat, _ := f.GetString("fmt")
	counter, _ := f.GetInt("counter")
	overwrite, _ := f.GetBool("overwrite")
	createDatabase, _ := f.GetBool("create-database")
	createTable, _ := f.GetBool("create-table")
	insert, _ := f.GetBool("insert")
	mayFail, _ := f.GetBool("may-fail")
	addDown, _ := f.GetBool("add-down")
	split, _ := f.GetBool("split")
	file, _ := f.GetString("file")

	if split {
		if err := dump.CheckNameFormat(nameFormat); err != nil {
			return err
		}
	}

	w, err := connect(ctx, connectOpts{})
	if err != nil {
		return err
	}
	defer w.close(ctx)

	opts := []dump.Option{
		dump.WithNameFormat(nameFormat),
		dump.WithCounter(counter),
		dump.WithOverwrite(overwrite),
		dump.WithCreateTable(createTable),
		dump.WithInsert(insert),
		dump.WithMayFail(mayFail),
		dump.WithAddDown(addDown),
	}

	if createDatabase {
		opts = append(opts, dump.WithCreateDatabase(w.cfg.Database))
	}

	var out io.Writer = cmd.OutOrStdout()

	switch {
	case split:
		opts = append(opts, dump.WithSplit(rt.fs, w.cfg.Directory))
	case file != "":
		fh, err := openOutput(file, overwrite)
		if err != nil {
			return err
		}
		defer fh.Close()

		out = fh
	}

	written, err := dump.New(w.session, rt.logger, opts...).Dump(ctx, out, args)
	if err != nil {
		return fmt.Errorf("dumping database: %w", err)
	}

	for _, path := range written {
		rt.logger.InfoContext(ctx, "migration written", "path", path)
	}

	return nil
}

// openOutput creates path for writing, failing if it exists unless
// overwrite is set.
func openOutput(path string, overwrite bool) (io.WriteCloser, error) {
	if !overwrite {
		if _, err := rt.fs.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", migration.ErrFileExists, path)
		}
	}

	fh, err := rt.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening dump file %s: %w", path, err)
	}

	return fh, nil
}
