package trigger

import "errors"

// Configuration errors for trigger construction.
var (
	// ErrInvalidPeriod indicates a non-positive period or maximum.
	ErrInvalidPeriod = errors.New("invalid trigger period")

	// ErrInvalidUnit indicates an unknown trigger unit.
	ErrInvalidUnit = errors.New("invalid trigger unit")

	// ErrInvalidSpec indicates a value that is neither a TriggerSpec nor a
	// trigger instance.
	ErrInvalidSpec = errors.New("invalid trigger spec")
)
