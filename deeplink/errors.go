package deeplink

import "errors"

// Sentinel errors for resolver construction and resolution.
var (
	ErrDuplicateTemplate = errors.New("duplicate redirect template")
	ErrNoPrefix          = errors.New("no configured prefix matches url")
	ErrBadURL            = errors.New("unparseable url")
)
