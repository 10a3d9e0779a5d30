package lint

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// DefaultRules returns every built-in rule.
func DefaultRules() []Rule {
	return []Rule{
		DestructiveRule{},
		LockTableRule{},
		NoTransactionRule{},
		RewriteRule{},
		RenameRule{},
	}
}

// DestructiveRule flags DROP TABLE and TRUNCATE outside the down section.
type DestructiveRule struct{}

// ID returns the rule identifier.
func (DestructiveRule) ID() string { return "destructive" }

// Check examines a statement for DROP TABLE or TRUNCATE.
func (r DestructiveRule) Check(stmt *pg_query.RawStmt, ctx *Context) []Finding {
	if ctx.Section == migration.SectionDown {
		return nil
	}

	switch node := stmt.GetStmt().GetNode().(type) {
	case *pg_query.Node_DropStmt:
		drop := node.DropStmt
		if drop.GetRemoveType() != pg_query.ObjectType_OBJECT_TABLE {
			return nil
		}

		return []Finding{{
			Rule:     r.ID(),
			Severity: Critical,
			Table:    strings.Join(dropTableNames(drop), ", "),
			Message:  "DROP TABLE permanently deletes the table and its data",
		}}
	case *pg_query.Node_TruncateStmt:
		var tables []string

		for _, rel := range node.TruncateStmt.GetRelations() {
			if rv := rel.GetRangeVar(); rv != nil {
				tables = append(tables, TableName(rv))
			}
		}

		return []Finding{{
			Rule:     r.ID(),
			Severity: Critical,
			Table:    strings.Join(tables, ", "),
			Message:  "TRUNCATE removes every row of the table",
		}}
	default:
		return nil
	}
}

func dropTableNames(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.GetObjects() {
		list := obj.GetList()
		if list == nil {
			continue
		}

		var parts []string

		for _, item := range list.GetItems() {
			if s := item.GetString_(); s != nil {
				parts = append(parts, s.GetSval())
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}

// LockTableRule flags explicit LOCK TABLE statements.
type LockTableRule struct{}

// ID returns the rule identifier.
func (LockTableRule) ID() string { return "lock-table" }

// Check examines a statement for explicit LOCK TABLE.
func (r LockTableRule) Check(stmt *pg_query.RawStmt, _ *Context) []Finding {
	lock := stmt.GetStmt().GetLockStmt()
	if lock == nil {
		return nil
	}

	var findings []Finding

	for _, rel := range lock.GetRelations() {
		rv := rel.GetRangeVar()
		if rv == nil {
			continue
		}

		findings = append(findings, Finding{
			Rule:     r.ID(),
			Severity: Medium,
			Table:    TableName(rv),
			Message:  "explicit LOCK TABLE blocks other sessions until the migration commits",
		})
	}

	return findings
}

// NoTransactionRule flags statements PostgreSQL refuses to run inside a
// transaction block. Migrations always run in one, so these fail.
type NoTransactionRule struct{}

// ID returns the rule identifier.
func (NoTransactionRule) ID() string { return "no-transaction" }

// Check examines a statement for commands that cannot run in a transaction.
func (r NoTransactionRule) Check(stmt *pg_query.RawStmt, _ *Context) []Finding {
	node := stmt.GetStmt()

	var (
		table   string
		message string
	)

	switch {
	case node.GetIndexStmt() != nil && node.GetIndexStmt().GetConcurrent():
		table = TableName(node.GetIndexStmt().GetRelation())
		message = "CREATE INDEX CONCURRENTLY cannot run inside a transaction block"
	case node.GetVacuumStmt() != nil:
		message = "VACUUM cannot run inside a transaction block"
	case node.GetCreatedbStmt() != nil:
		table = node.GetCreatedbStmt().GetDbname()
		message = "CREATE DATABASE cannot run inside a transaction block"
	case node.GetDropdbStmt() != nil:
		table = node.GetDropdbStmt().GetDbname()
		message = "DROP DATABASE cannot run inside a transaction block"
	default:
		return nil
	}

	return []Finding{{
		Rule:     r.ID(),
		Severity: High,
		Table:    table,
		Message:  message,
	}}
}

// RewriteRule flags ALTER COLUMN ... TYPE, which rewrites the whole table
// under an ACCESS EXCLUSIVE lock.
type RewriteRule struct{}

// ID returns the rule identifier.
func (RewriteRule) ID() string { return "table-rewrite" }

// Check examines a statement for column type changes.
func (r RewriteRule) Check(stmt *pg_query.RawStmt, _ *Context) []Finding {
	alter := stmt.GetStmt().GetAlterTableStmt()
	if alter == nil {
		return nil
	}

	var findings []Finding

	for _, node := range alter.GetCmds() {
		cmd := node.GetAlterTableCmd()
		if cmd == nil || cmd.GetSubtype() != pg_query.AlterTableType_AT_AlterColumnType {
			continue
		}

		findings = append(findings, Finding{
			Rule:     r.ID(),
			Severity: High,
			Table:    TableName(alter.GetRelation()),
			Message:  fmt.Sprintf("changing the type of column %s rewrites the table", cmd.GetName()),
		})
	}

	return findings
}

// RenameRule flags table and column renames, which break clients still
// using the old name.
type RenameRule struct{}

// ID returns the rule identifier.
func (RenameRule) ID() string { return "rename" }

// Check examines a statement for RENAME TABLE or RENAME COLUMN.
func (r RenameRule) Check(stmt *pg_query.RawStmt, _ *Context) []Finding {
	rename := stmt.GetStmt().GetRenameStmt()
	if rename == nil {
		return nil
	}

	var message string

	switch rename.GetRenameType() {
	case pg_query.ObjectType_OBJECT_TABLE:
		message = fmt.Sprintf("renaming the table to %s breaks queries using the old name", rename.GetNewname())
	case pg_query.ObjectType_OBJECT_COLUMN:
		message = fmt.Sprintf("renaming column %s breaks queries using the old name", rename.GetSubname())
	default:
		return nil
	}

	return []Finding{{
		Rule:     r.ID(),
		Severity: Medium,
		Table:    TableName(rename.GetRelation()),
		Message:  message,
	}}
}
