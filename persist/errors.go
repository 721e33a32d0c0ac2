package persist

import "errors"

// Sentinel errors for snapshot stores and the codec.
var (
	ErrNoSnapshot  = errors.New("no snapshot")
	ErrSaveFailed  = errors.New("save failed")
	ErrLoadFailed  = errors.New("load failed")
	ErrBadSnapshot = errors.New("snapshot is not a list")
	ErrBadEntry    = errors.New("invalid snapshot entry")
)
