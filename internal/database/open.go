package database

import (
	"context"
	"fmt"
	"log/slog"
)

// Params describes how to reach a target database. URL, when set, is a
// backend-specific connection string that takes precedence over the
// individual fields.
type Params struct {
	Driver   string
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string
	// CreateDatabase creates Database when missing before connecting to it.
	CreateDatabase bool
}

// driverAliases maps alternative spellings onto the canonical backend name.
var driverAliases = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"postgres":   DriverPostgres,
	"postgresql": DriverPostgres,
	"sqlite":     DriverSQLite,
	"fake":       DriverNull,
}

// CanonicalDriver resolves aliases such as "postgres" or "fake" and
// reports whether the result is a known backend.
func CanonicalDriver(name string) (string, bool) {
	if alias, ok := driverAliases[name]; ok {
		name = alias
	}

	switch name {
	case DriverMySQL, DriverPostgres, DriverSQLite, DriverNull:
		return name, true
	default:
		return name, false
	}
}

// Open connects to the database described by p.
func Open(ctx context.Context, p Params, logger *slog.Logger) (Session, error) {
	driver, ok := CanonicalDriver(p.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, p.Driver)
	}

	logger.DebugContext(ctx, "opening session", "driver", driver, "host", p.Host, "database", p.Database)

	switch driver {
	case DriverMySQL:
		return openMySQL(ctx, p, logger)
	case DriverPostgres:
		return openPostgres(ctx, p, logger)
	case DriverSQLite:
		path := p.URL
		if path == "" {
			path = p.Database
		}

		return OpenSQLite(ctx, path, logger)
	default:
		return NewNullSession(logger), nil
	}
}
