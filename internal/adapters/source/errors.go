package source

import "errors"

// Sentinel errors for source adapters.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyInput    = errors.New("input has no header row")
	ErrOpen          = errors.New("open source failed")
)
