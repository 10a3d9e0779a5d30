package config

import "errors"

// ErrUnknownDriver indicates the configured driver is not supported.
var ErrUnknownDriver = errors.New("unknown driver")

// ErrDatabaseRequired indicates no database name or URL was configured.
var ErrDatabaseRequired = errors.New("database name is required")

// ErrPasswordRequired indicates no password was configured and an empty one was not allowed.
var ErrPasswordRequired = errors.New("password is required (use --empty-password to connect without one)")
