package database

import "errors"

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrUnknownDriver indicates the requested backend is not supported.
var ErrUnknownDriver = errors.New("unknown database driver")

// ErrTransactionOpen indicates Begin was called while a transaction is active.
var ErrTransactionOpen = errors.New("transaction already open")

// ErrNoTransaction indicates Commit or Rollback was called without Begin.
var ErrNoTransaction = errors.New("no transaction open")

// ErrNotSupported indicates the backend cannot perform the requested introspection.
var ErrNotSupported = errors.New("not supported by this backend")

// ErrNotFound indicates an introspection query returned no row.
var ErrNotFound = errors.New("object not found")
