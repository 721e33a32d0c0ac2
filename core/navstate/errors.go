package navstate

import "errors"

// ErrNotSerializable is returned by Canonical and New when a payload holds
// values that JSON cannot represent.
var ErrNotSerializable = errors.New("payload not serializable")
