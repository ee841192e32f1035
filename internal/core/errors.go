package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there is nothing to merge.
var ErrEmptyInput = errors.New("no tables to merge")

// ColumnNotFoundError reports a selected column that is not in the merged table.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("column not found: %q", e.Column)
	}
	return fmt.Sprintf("column not found: %q (available: %s)", e.Column, strings.Join(e.Available, ", "))
}
