package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNoRun       = errors.New("no run has been published yet")
	ErrRunInFlight = errors.New("a run is already in flight")
)
