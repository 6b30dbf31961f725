package training

import "errors"

// Domain errors for the training loop and its hooks.
var (
	// ErrTimerNotEmpty indicates the shared timer held unflushed samples
	// around a validation pass. This is an internal consistency bug in hook
	// ordering, never silently ignored.
	ErrTimerNotEmpty = errors.New("timer holds unflushed samples")

	// ErrNilModel indicates a trainer was built without a model.
	ErrNilModel = errors.New("model must not be nil")

	// ErrNilHook indicates an attempt to register a nil hook.
	ErrNilHook = errors.New("hook must not be nil")
)
