package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("no run published")
	ErrInvalidLimit = errors.New("invalid row limit")
	ErrNilRun       = errors.New("nil run")
)
