package ledger

import (
	"fmt"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

// DefaultTable is the ledger table name used when none is configured.
const DefaultTable = "migrate"

// CreateTableSQL is the DDL of the ledger table for dialect d.
func CreateTableSQL(d database.Dialect, table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
    %s VARCHAR(255) NOT NULL,
    %s %s NOT NULL,
    %s VARCHAR(64) NOT NULL,
    UNIQUE (%s)
);
`,
		d.QuoteIdent(table),
		d.QuoteIdent(colName), d.QuoteIdent(colApplied), d.TimestampType(), d.QuoteIdent(colHash),
		d.QuoteIdent(colName))
}

// DropTableSQL removes the ledger table.
func DropTableSQL(d database.Dialect, table string) string {
	return fmt.Sprintf("DROP TABLE %s;\n", d.QuoteIdent(table))
}

// InstallMigration renders the bootstrap migration that creates the
// ledger table on up and drops it on down.
func InstallMigration(d database.Dialect, table string) string {
	return "-- migrate: up\n" + CreateTableSQL(d, table) + "\n-- migrate: down\n" + DropTableSQL(d, table)
}
