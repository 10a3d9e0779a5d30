package migration

import (
	"errors"
	"fmt"
)

// ErrFileExists indicates a migration file would overwrite an existing one.
var ErrFileExists = errors.New("migration file already exists")

// ErrInvalidEncoding indicates a migration file that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("migration is not valid UTF-8")

// LoadError reports a migration file that could not be read or parsed.
// Listing operations log it and continue with the remaining files.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading migration %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
