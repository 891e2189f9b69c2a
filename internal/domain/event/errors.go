package event

import "errors"

// Sentinel kinds for event validation and codec errors.
var (
	ErrInvalidEvent = errors.New("invalid event")
	ErrDecode       = errors.New("decode event failed")
)
