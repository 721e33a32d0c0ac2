package host

import "errors"

// Sentinel errors for navigator operations.
var (
	ErrNotMounted = errors.New("navigator not mounted")
	ErrEmptyStack = errors.New("stack is empty")
)
