package saga

import "errors"

// Sentinel kinds for saga errors.
var (
	ErrStepPanic = errors.New("saga step panicked")
)
