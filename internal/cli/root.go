package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/logging"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// runtime holds the process dependencies shared by all commands.
type runtime struct {
	fs     vfs.FileSystem
	stdout io.Writer
	stderr io.Writer
	color  bool
	now    func() time.Time
	logger *slog.Logger
}

var rt = &runtime{ //nolint:gochecknoglobals // set once by Execute, replaced in tests
	fs:     osfs.New(),
	stdout: os.Stdout,
	stderr: os.Stderr,
	now:    time.Now,
	logger: logging.Discard(),
}

// Option configures the process dependencies of the CLI.
type Option func(*runtime)

// WithFS sets the filesystem holding migrations, templates and dump output.
func WithFS(fs vfs.FileSystem) Option {
	return func(r *runtime) { r.fs = fs }
}

// WithOutput sets the standard output and error writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *runtime) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithColor enables colored log output.
func WithColor(b bool) Option {
	return func(r *runtime) { r.color = b }
}

// WithClock sets the time source used for migration names and ledger stamps.
func WithClock(now func() time.Time) Option {
	return func(r *runtime) { r.now = now }
}

// rootCmd is the base command for the migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Version: version,
	Short:   "Versioned SQL migrations for MySQL, PostgreSQL and SQLite",
	Long: `migrate applies versioned SQL files to a database and records each
applied file, with a hash of its content, in a ledger table.

Migration files are split into sections with "-- migrate: <section>"
comments (prolog, up, down, epilog). A statement starting with "@" may
fail without aborting the migration. Filters select migrations by range
("A..B"), by count ("3") or by name.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "path to configuration file (default migrate.yml)")
	f.String("driver", "", "database driver: mysql, pgsql, sqlite3 or null")
	f.String("url", "", "connection URL or DSN, replaces the discrete connection flags")
	f.StringP("host", "H", "", "database host")
	f.Int("port", 0, "database port")
	f.StringP("database", "d", "", "database name (file path for sqlite3)")
	f.StringP("user", "u", "", "database user")
	f.StringP("password", "p", "", "database password")
	f.Bool("empty-password", false, "connect without a password")
	f.String("charset", "", "connection character set, e.g. utf8mb4")
	f.StringP("table", "t", "", "ledger table name")
	f.String("template", "", "migration file wrapped around every migration")
	f.StringP("directory", "D", "", "migrations directory")
	f.BoolP("dry-run", "n", false, "show what would be done without changing the database")
	f.CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

// Execute runs the root command. Called from main.
func Execute(opts ...Option) {
	for _, opt := range opts {
		opt(rt)
	}

	rootCmd.SetOut(rt.stdout)
	rootCmd.SetErr(rt.stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rt.stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg := config.New()

	if path := config.Locate(configPath); path != "" {
		var err error
		if cfg, err = config.Load(path, allowMissing); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
	}

	if err := config.MergeEnv(cfg, nil); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mergeFlags(cmd, cfg)

	verbosity, _ := cmd.Flags().GetCount("verbose")
	rt.logger = logging.New(rt.stderr, verbosity, rt.color)
	rt.logger.Debug("configuration loaded", "config", cfg.Redacted())

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	stringFlags := map[string]*string{
		"driver":    &cfg.Driver,
		"url":       &cfg.URL,
		"host":      &cfg.Host,
		"database":  &cfg.Database,
		"user":      &cfg.User,
		"password":  &cfg.Password,
		"charset":   &cfg.Charset,
		"table":     &cfg.Table,
		"template":  &cfg.Template,
		"directory": &cfg.Directory,
	}

	for name, field := range stringFlags {
		if cmd.Flags().Changed(name) {
			*field, _ = cmd.Flags().GetString(name)
		}
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	if cmd.Flags().Changed("empty-password") {
		cfg.EmptyPassword, _ = cmd.Flags().GetBool("empty-password")
	}
}

func dryRun(cmd *cobra.Command) bool {
	b, _ := cmd.Flags().GetBool("dry-run")
	return b
}
