// Package lint checks migration statements against the PostgreSQL
// grammar and flags statements that are destructive or cannot run the
// way migrations are executed.
package lint

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

const statementDisplayLen = 80

// Finding is one problem detected in a migration statement.
type Finding struct {
	Rule      string
	Severity  Severity
	Section   string
	Statement string // truncated for display
	Table     string
	Message   string
}

// Report holds the findings of one migration.
type Report struct {
	Name        string
	Findings    []Finding
	MaxSeverity Severity
}

// HasHighOrCritical returns true if any finding is High or Critical severity.
func (r *Report) HasHighOrCritical() bool {
	return r.MaxSeverity >= High
}

// Context describes the statement a rule is looking at.
type Context struct {
	Migration string
	Section   string
}

// Rule examines one parsed statement.
type Rule interface {
	// ID returns a unique kebab-case identifier for this rule.
	ID() string
	// Check returns the findings for stmt.
	Check(stmt *pg_query.RawStmt, ctx *Context) []Finding
}

// Option configures a Linter.
type Option func(*Linter)

// WithRules replaces the rule set.
func WithRules(rules ...Rule) Option {
	return func(l *Linter) { l.rules = rules }
}

// WithParser overrides the SQL parser function.
func WithParser(fn func(string) (*pg_query.ParseResult, error)) Option {
	return func(l *Linter) { l.parseFn = fn }
}

// Linter runs rules against every statement of a migration.
type Linter struct {
	rules   []Rule
	parseFn func(string) (*pg_query.ParseResult, error)
}

// New creates a Linter with the default rules.
func New(opts ...Option) *Linter {
	l := &Linter{
		rules:   DefaultRules(),
		parseFn: pg_query.Parse,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Check lints every statement of src, section by section in declaration
// order. A statement that does not parse yields a "syntax" finding.
func (l *Linter) Check(src *migration.Source) *Report {
	r := &Report{Name: src.Name}

	for _, key := range src.Keys {
		for _, st := range src.Section(key) {
			for _, f := range l.checkStatement(src.Name, key, st) {
				r.add(f)
			}
		}
	}

	return r
}

// CheckAll lints every source in order.
func (l *Linter) CheckAll(sources []*migration.Source) []*Report {
	reports := make([]*Report, 0, len(sources))
	for _, src := range sources {
		reports = append(reports, l.Check(src))
	}

	return reports
}

func (r *Report) add(f Finding) {
	if f.Severity > r.MaxSeverity {
		r.MaxSeverity = f.Severity
	}

	r.Findings = append(r.Findings, f)
}

func (l *Linter) checkStatement(name, section string, st migration.Statement) []Finding {
	sql := strings.TrimSpace(st.SQL())
	display := TruncateSQL(strings.Join(strings.Fields(sql), " "), statementDisplayLen)

	tree, err := l.parseFn(sql)
	if err != nil {
		return []Finding{{
			Rule:      "syntax",
			Severity:  High,
			Section:   section,
			Statement: display,
			Message:   fmt.Sprintf("statement does not parse: %v", err),
		}}
	}

	ctx := &Context{Migration: name, Section: section}

	var findings []Finding

	for _, raw := range tree.GetStmts() {
		for _, rule := range l.rules {
			for _, f := range rule.Check(raw, ctx) {
				f.Section = section
				f.Statement = display
				findings = append(findings, f)
			}
		}
	}

	return findings
}

// TableName extracts a qualified table name from a RangeVar.
func TableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}

// TruncateSQL truncates a SQL string to maxLen characters for display.
func TruncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}

	return sql[:maxLen-3] + "..."
}
