package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn marks a header row lacking a required column.
	ErrMissingColumn = errors.New("loader: missing column")
	// ErrMalformedValue marks a cell or row that cannot be parsed.
	ErrMalformedValue = errors.New("loader: malformed value")
)

// ValueError locates a malformed cell. It matches ErrMalformedValue with errors.Is.
type ValueError struct {
	Source string
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s:%d: column %s: malformed value %q: %v", e.Source, e.Line, e.Column, e.Value, e.Err)
}

func (e *ValueError) Unwrap() []error { return []error{ErrMalformedValue, e.Err} }
