package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// Status is the reconciliation state of one migration.
type Status int

// Reconciliation states.
const (
	StatusPending Status = iota
	StatusApplied
	StatusDrifted
	StatusMissing
)

// Code returns the one-letter status code used in status reports.
func (s Status) Code() string {
	switch s {
	case StatusPending:
		return "P"
	case StatusApplied:
		return "A"
	case StatusDrifted:
		return "D"
	case StatusMissing:
		return "M"
	default:
		return "?"
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApplied:
		return "applied"
	case StatusDrifted:
		return "drifted"
	case StatusMissing:
		return "missing"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Classification is the state of a migration together with the data
// that produced it.
type Classification struct {
	Name   string
	Status Status
	// Hash is the hash of the file content; empty for missing migrations.
	Hash string
	// Entry is the ledger row; zero for pending migrations.
	Entry Entry
}

// String renders the classification as a status line:
//
//	P <name> <hash>
//	A <name> <applied> <hash>
//	D <name> <applied> <hash> <stored hash>
//	M <name> <applied> <stored hash>
func (c Classification) String() string {
	fields := []string{c.Status.Code(), c.Name}

	switch c.Status {
	case StatusPending:
		fields = append(fields, c.Hash)
	case StatusApplied:
		fields = append(fields, c.Entry.Applied.Format(TimeFormat), c.Hash)
	case StatusDrifted:
		fields = append(fields, c.Entry.Applied.Format(TimeFormat), c.Hash, c.Entry.Hash)
	case StatusMissing:
		fields = append(fields, c.Entry.Applied.Format(TimeFormat), c.Entry.Hash)
	}

	return strings.Join(fields, " ")
}

// Reconciler compares migration sources with the ledger.
type Reconciler struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over l.
func NewReconciler(l *Ledger, logger *slog.Logger) *Reconciler {
	return &Reconciler{ledger: l, logger: logger}
}

// Classify returns the state of src. A hash mismatch is logged as a
// warning and reported as StatusDrifted.
func (r *Reconciler) Classify(ctx context.Context, src *migration.Source) (Classification, error) {
	hash := src.Hash()
	c := Classification{Name: src.Name, Hash: hash}

	found, err := r.ledger.Lookup(ctx, src.Name)
	if err != nil {
		return c, err
	}

	if found.TableMissing || !found.Found {
		c.Status = StatusPending
		return c, nil
	}

	c.Entry = found.Entry

	if found.Entry.Hash != hash {
		c.Status = StatusDrifted
		r.logger.WarnContext(ctx, ErrHashMismatch.Error(),
			"name", src.Name, "expected", hash, "found", found.Entry.Hash)

		return c, nil
	}

	c.Status = StatusApplied

	return c, nil
}

// Pending returns the sources that are not in the ledger, in input order.
func (r *Reconciler) Pending(ctx context.Context, sources []*migration.Source) ([]*migration.Source, error) {
	var pending []*migration.Source

	for _, src := range sources {
		c, err := r.Classify(ctx, src)
		if err != nil {
			return nil, err
		}

		if c.Status != StatusPending {
			r.logger.InfoContext(ctx, "migration already applied", "name", src.Name)
			continue
		}

		pending = append(pending, src)
	}

	return pending, nil
}

// Report classifies every source in input order.
func (r *Reconciler) Report(ctx context.Context, sources []*migration.Source) ([]Classification, error) {
	report := make([]Classification, 0, len(sources))

	for _, src := range sources {
		c, err := r.Classify(ctx, src)
		if err != nil {
			return nil, err
		}

		report = append(report, c)
	}

	return report, nil
}

// Missing returns the ledger rows whose name is not in onDisk, ordered by
// name.
func (r *Reconciler) Missing(ctx context.Context, onDisk []string) ([]Classification, error) {
	entries, err := r.ledger.List(ctx, OrderByName, false)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(onDisk))
	for _, name := range onDisk {
		known[name] = struct{}{}
	}

	var missing []Classification

	for _, e := range entries {
		if _, ok := known[e.Name]; ok {
			continue
		}

		missing = append(missing, Classification{Name: e.Name, Status: StatusMissing, Entry: e})
	}

	return missing, nil
}
