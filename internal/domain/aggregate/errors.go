package aggregate

import "errors"

// ErrCountMismatch means the summed original statements disagree with the included fact count.
var ErrCountMismatch = errors.New("aggregate: original statement count mismatch")
