package dump

import (
	"errors"
	"fmt"
)

// ErrInvalidNameFormat indicates a split file name format that does not
// take exactly a counter and a table name.
var ErrInvalidNameFormat = errors.New("invalid file name format")

// TypeError reports a column value the dumper cannot render as SQL.
type TypeError struct {
	Table  string
	Column string
	Value  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("dumping %s.%s: unsupported value type %T", e.Table, e.Column, e.Value)
}
