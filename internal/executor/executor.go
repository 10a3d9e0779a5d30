// Package executor runs batches of parsed migrations against a Session,
// one direction at a time, and keeps the ledger in step with what was
// committed.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// Direction selects which section of each migration runs.
type Direction string

// Supported directions.
const (
	Up   Direction = migration.SectionUp
	Down Direction = migration.SectionDown
)

// State is the lifecycle state of an Executor.
type State int

// Executor states. A run moves Idle -> Running -> Committed or RolledBack.
const (
	StateIdle State = iota
	StateRunning
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting   = "starting"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled back"
	StatusPlanned    = "planned"
)

// ProgressEvent is emitted by the executor for each migration processed.
// A StatusCompleted event is only sent once the migration is committed.
type ProgressEvent struct {
	Name      string
	Direction Direction
	Status    string
	Duration  time.Duration
	Error     error
}

// Recorder is the part of the ledger the executor updates.
type Recorder interface {
	Record(ctx context.Context, name, hash string) error
	Unrecord(ctx context.Context, name string) error
}

// Executor applies migration batches inside transactions.
type Executor struct {
	session    database.Session
	recorder   Recorder
	template   *migration.Source
	singleTx   bool
	dryRun     bool
	onProgress func(ProgressEvent)
	logger     *slog.Logger
	state      State
}

// Option configures an Executor.
type Option func(*Executor)

// WithTemplate wraps every migration with the sections of tpl.
func WithTemplate(tpl *migration.Source) Option {
	return func(e *Executor) { e.template = tpl }
}

// WithSingleTransaction runs the whole batch in one transaction.
func WithSingleTransaction(b bool) Option {
	return func(e *Executor) { e.singleTx = b }
}

// WithDryRun enables dry-run mode where the session is never used.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor on session s. rec may be nil, in which case
// nothing is recorded.
func New(s database.Session, rec Recorder, opts ...Option) *Executor {
	e := &Executor{
		session:  s,
		recorder: rec,
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// State returns the state of the last run.
func (e *Executor) State() State { return e.state }

// Run executes batch in the given direction, in the order given. It
// returns the names of the committed migrations. On the first hard
// failure the current transaction is rolled back, the batch stops and a
// *StatementError (or ledger error) is returned together with the names
// committed before it.
func (e *Executor) Run(ctx context.Context, dir Direction, batch []*migration.Source) ([]string, error) {
	if e.state == StateRunning {
		return nil, ErrBusy
	}

	if e.dryRun {
		return e.plan(dir, batch), nil
	}

	e.state = StateRunning

	var (
		committed []string
		err       error
	)

	if e.singleTx {
		committed, err = e.runSingle(ctx, dir, batch)
	} else {
		committed, err = e.runEach(ctx, dir, batch)
	}

	if err != nil {
		e.state = StateRolledBack
		return committed, err
	}

	e.state = StateCommitted

	return committed, nil
}

func (e *Executor) plan(dir Direction, batch []*migration.Source) []string {
	names := make([]string, 0, len(batch))

	for _, src := range batch {
		names = append(names, src.Name)
		e.fireProgress(ProgressEvent{Name: src.Name, Direction: dir, Status: StatusPlanned})
	}

	return names
}

// runEach commits every migration in its own transaction.
func (e *Executor) runEach(ctx context.Context, dir Direction, batch []*migration.Source) ([]string, error) {
	committed := make([]string, 0, len(batch))

	for _, src := range batch {
		start := time.Now()

		err := inTransaction(ctx, e.session, e.logger, func() error {
			return e.migrate(ctx, dir, src)
		})
		if err != nil {
			e.fireFailure(src.Name, dir, time.Since(start), err)
			return committed, err
		}

		committed = append(committed, src.Name)
		e.fireProgress(ProgressEvent{
			Name: src.Name, Direction: dir, Status: StatusCompleted, Duration: time.Since(start),
		})
	}

	return committed, nil
}

// runSingle commits the whole batch at once; nothing is reported as
// completed before the final commit.
func (e *Executor) runSingle(ctx context.Context, dir Direction, batch []*migration.Source) ([]string, error) {
	start := time.Now()
	current := ""

	err := inTransaction(ctx, e.session, e.logger, func() error {
		for _, src := range batch {
			current = src.Name
			if err := e.migrate(ctx, dir, src); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		e.fireFailure(current, dir, time.Since(start), err)
		return nil, err
	}

	names := make([]string, 0, len(batch))

	for _, src := range batch {
		names = append(names, src.Name)
		e.fireProgress(ProgressEvent{
			Name: src.Name, Direction: dir, Status: StatusCompleted, Duration: time.Since(start),
		})
	}

	return names, nil
}

// migrate runs the statements of one migration and updates the ledger,
// inside the caller's transaction.
func (e *Executor) migrate(ctx context.Context, dir Direction, src *migration.Source) error {
	e.logger.InfoContext(ctx, "applying migration", "direction", string(dir), "name", src.Name)
	e.fireProgress(ProgressEvent{Name: src.Name, Direction: dir, Status: StatusStarting})

	if err := e.execStatements(ctx, src.Name, e.statements(dir, src)); err != nil {
		return err
	}

	if e.recorder == nil {
		return nil
	}

	var err error
	if dir == Up {
		err = e.recorder.Record(ctx, src.Name, src.Hash())
	} else {
		err = e.recorder.Unrecord(ctx, src.Name)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExecutionFailed, src.Name, err)
	}

	return nil
}

// statements returns the statement sequence of src in direction dir,
// wrapped by the template.
func (e *Executor) statements(dir Direction, src *migration.Source) []migration.Statement {
	key := string(dir)
	groups := [][]migration.Statement{
		e.template.Section(migration.SectionProlog),
		src.Section(migration.SectionProlog),
		e.template.Section(key),
		src.Section(key),
		src.Section(migration.SectionEpilog),
		e.template.Section(migration.SectionEpilog),
	}

	var out []migration.Statement
	for _, g := range groups {
		out = append(out, g...)
	}

	return out
}

func (e *Executor) execStatements(ctx context.Context, name string, stmts []migration.Statement) error {
	for _, st := range stmts {
		if err := e.execStatement(ctx, name, st); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) execStatement(ctx context.Context, name string, st migration.Statement) error {
	query := st.SQL()
	e.logger.DebugContext(ctx, "executing statement", "name", name, "may_fail", st.MayFail(), "sql", query)

	if !st.MayFail() {
		if _, err := e.session.Exec(ctx, query); err != nil {
			e.logger.ErrorContext(ctx, "migration failed", "name", name, "error", err)
			return &StatementError{Migration: name, Statement: query, Err: err}
		}

		return nil
	}

	var stmtErr error

	if e.session.Dialect().AbortsTransactionOnError() {
		var err error
		if stmtErr, err = execGuarded(ctx, e.session, query); err != nil {
			return &StatementError{Migration: name, Statement: query, Err: err}
		}
	} else {
		_, stmtErr = e.session.Exec(ctx, query)
	}

	if stmtErr != nil {
		e.logger.WarnContext(ctx, "query failed, continuing", "name", name, "error", stmtErr)
	}

	return nil
}

// Execute runs the given sections of src, in order, in one transaction
// without touching the ledger. Each section is preceded by the template's
// section of the same name.
func (e *Executor) Execute(ctx context.Context, src *migration.Source, sections []string) error {
	var stmts []migration.Statement
	for _, key := range sections {
		stmts = append(stmts, e.template.Section(key)...)
		stmts = append(stmts, src.Section(key)...)
	}

	if e.dryRun {
		e.fireProgress(ProgressEvent{Name: src.Name, Status: StatusPlanned})
		return nil
	}

	start := time.Now()
	e.fireProgress(ProgressEvent{Name: src.Name, Status: StatusStarting})

	err := inTransaction(ctx, e.session, e.logger, func() error {
		return e.execStatements(ctx, src.Name, stmts)
	})
	if err != nil {
		e.fireFailure(src.Name, "", time.Since(start), err)
		return err
	}

	e.fireProgress(ProgressEvent{Name: src.Name, Status: StatusCompleted, Duration: time.Since(start)})

	return nil
}

func (e *Executor) fireFailure(name string, dir Direction, d time.Duration, err error) {
	e.fireProgress(ProgressEvent{Name: name, Direction: dir, Status: StatusFailed, Duration: d, Error: err})
	e.fireProgress(ProgressEvent{Name: name, Direction: dir, Status: StatusRolledBack})
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
