package config

import "errors"

// Sentinel errors wrapped by Load and Validate so callers can branch
// with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
