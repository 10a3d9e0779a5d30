package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

// savepointName is the savepoint guarding may-fail statements on
// backends where a failed statement aborts the transaction.
const savepointName = "migrate_may_fail"

// inTransaction runs fn inside a transaction on s. On success the
// transaction is committed; on error it is rolled back and fn's error
// is returned.
func inTransaction(ctx context.Context, s database.Session, logger *slog.Logger, fn func() error) error {
	if err := s.Begin(ctx); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(); err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			logger.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}

		return err
	}

	if err := s.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// execGuarded runs query inside a savepoint so that its failure leaves
// the enclosing transaction usable. stmtErr is the failure of query
// itself; err reports a failure of the savepoint handling.
func execGuarded(ctx context.Context, s database.Session, query string) (stmtErr, err error) {
	if _, err := s.Exec(ctx, "SAVEPOINT "+savepointName); err != nil {
		return nil, fmt.Errorf("creating savepoint: %w", err)
	}

	if _, stmtErr = s.Exec(ctx, query); stmtErr != nil {
		if _, err := s.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); err != nil {
			return stmtErr, fmt.Errorf("rolling back to savepoint: %w", err)
		}

		return stmtErr, nil
	}

	if _, err := s.Exec(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return nil, fmt.Errorf("releasing savepoint: %w", err)
	}

	return nil, nil
}
