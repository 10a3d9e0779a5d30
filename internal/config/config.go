package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

// Default values for configuration fields.
const (
	DefaultFile      = "migrate.yml"
	DefaultDriver    = database.DriverMySQL
	DefaultHost      = "database"
	DefaultUser      = "root"
	DefaultTable     = "migrate"
	DefaultDirectory = "."
)

// xdgFile is the fallback config location below $XDG_CONFIG_HOME.
const xdgFile = "migrate/migrate.yml"

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	Driver        string `yaml:"driver"         env:"MIGRATE_DRIVER"`
	URL           string `yaml:"url"            env:"MIGRATE_URL"`
	Host          string `yaml:"host"           env:"MYSQL_HOST"`
	Port          int    `yaml:"port"           env:"MIGRATE_PORT"`
	Database      string `yaml:"database"       env:"MYSQL_DATABASE"`
	User          string `yaml:"user"           env:"MYSQL_USER"`
	Password      string `yaml:"password"       env:"MYSQL_PASSWORD"`
	EmptyPassword bool   `yaml:"empty_password" env:"MIGRATE_EMPTY_PASSWORD"`
	Charset       string `yaml:"charset"        env:"MIGRATE_CHARSET"`
	Table         string `yaml:"table"          env:"MIGRATE_TABLE"`
	Directory     string `yaml:"directory"      env:"MIGRATE_DIR"`
	Template      string `yaml:"template"       env:"MIGRATE_TEMPLATE"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Driver:    DefaultDriver,
		Host:      DefaultHost,
		User:      DefaultUser,
		Table:     DefaultTable,
		Directory: DefaultDirectory,
	}
}

// Load reads a YAML configuration file over the defaults. If allowMissing
// is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && allowMissing {
			return cfg, nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// Locate returns the config file to use: path when given, else
// DefaultFile in the working directory, else migrate/migrate.yml in the
// XDG config directories. It returns "" when none exists.
func Locate(path string) string {
	if path != "" {
		return path
	}

	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}

	if found, err := xdg.SearchConfigFile(xdgFile); err == nil {
		return found
	}

	return ""
}

// MergeEnv overrides config fields from the environment. A nil environment
// reads the process environment.
func MergeEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	return nil
}

// Validate checks the configuration before any database contact.
func (c *Config) Validate() error {
	driver, ok := database.CanonicalDriver(c.Driver)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}

	if driver == database.DriverNull || c.URL != "" {
		return nil
	}

	if c.Database == "" {
		return ErrDatabaseRequired
	}

	if driver == database.DriverSQLite {
		return nil
	}

	if c.Password == "" && !c.EmptyPassword {
		return ErrPasswordRequired
	}

	return nil
}

// Params returns the connection parameters described by the configuration.
func (c *Config) Params(createDatabase bool) database.Params {
	return database.Params{
		Driver:         c.Driver,
		URL:            c.URL,
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		Charset:        c.Charset,
		CreateDatabase: createDatabase,
	}
}
