package navstate

import (
	"encoding/json"
	"fmt"
)

// Extra is the arbitrary key-value payload passed alongside a navigation
// request. Screen code is expected to validate and narrow it; the engine
// treats it as opaque beyond canonicalization.
type Extra map[string]any

// Canonical round-trips extra through JSON so that only JSON-representable
// values survive. Live object references, channels, and functions do not make
// it into history. Empty input yields nil. Returns ErrNotSerializable when
// the payload cannot be marshaled.
func Canonical(extra Extra) (Extra, error) {
	if len(extra) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}

	var canon Extra
	if err := json.Unmarshal(data, &canon); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	return canon, nil
}

// Serializable reports whether v survives a JSON round trip unchanged in
// shape: a primitive scalar, or a list/map whose elements all pass the same
// check. Persistence uses it to omit extras that cannot be restored.
func Serializable(v any) bool {
	switch val := v.(type) {
	case nil, bool, string,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return true
	case []any:
		for _, item := range val {
			if !Serializable(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range val {
			if !Serializable(item) {
				return false
			}
		}
		return true
	case Extra:
		for _, item := range val {
			if !Serializable(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
