package ledger

import "errors"

// ErrNotRecorded indicates no ledger row exists for the given migration name.
var ErrNotRecorded = errors.New("migration not recorded in ledger")

// ErrHashMismatch indicates the recorded hash differs from the migration's current content.
var ErrHashMismatch = errors.New("migration hash mismatch")

// ErrInvalidOrder indicates an unsupported List ordering column.
var ErrInvalidOrder = errors.New("invalid ledger ordering")
