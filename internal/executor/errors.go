package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExecutionFailed indicates a migration failed to execute.
var ErrExecutionFailed = errors.New("migration execution failed")

// ErrBusy indicates Run was called while a batch is already running.
var ErrBusy = errors.New("executor is already running")

// StatementError reports the statement that aborted a migration.
type StatementError struct {
	Migration string
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("migration %s: executing %q: %v", e.Migration, strings.TrimSpace(e.Statement), e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Is makes every StatementError match ErrExecutionFailed.
func (e *StatementError) Is(target error) bool { return target == ErrExecutionFailed }
