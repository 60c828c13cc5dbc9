package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrRunInFlight    = errors.New("a run is already in flight")
	ErrIncompleteFill = errors.New("fill workers stopped before every partition was filled")
	ErrNilConfig      = errors.New("nil config")
	ErrRunPanicked    = errors.New("run panicked")
)
