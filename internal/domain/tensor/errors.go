package tensor

import "errors"

// ErrShapeMismatch indicates a tensor shape contract was violated. Messages
// wrapping it carry the offending shapes.
var ErrShapeMismatch = errors.New("shape mismatch")
