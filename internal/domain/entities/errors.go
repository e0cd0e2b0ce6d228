package entities

import "errors"

// ErrEngineUnavailable signals that an analysis capability is
// temporarily down. Callers degrade the affected output instead of
// failing the run.
var ErrEngineUnavailable = errors.New("engine unavailable")
