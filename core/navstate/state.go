// Package navstate defines the navigation payload types the engine attaches
// to host routes, and the canonicalization pass that keeps them serializable.
//
// A State embedded in a host route's payload is the marker that the route was
// issued by this engine; routes pushed by other mechanisms carry foreign
// payloads and are treated as unrecognized.
package navstate

// State is the read-only navigation view attached to a live host route.
// Extra has always passed through Canonical by the time a State exists, so
// persisted states are byte-for-byte reproducible.
type State struct {
	Path  string `json:"path"`
	Extra Extra  `json:"extra,omitempty"`
}

// New builds a State for path, canonicalizing extra first. Returns
// ErrNotSerializable when extra holds values JSON cannot represent.
func New(path string, extra Extra) (*State, error) {
	canon, err := Canonical(extra)
	if err != nil {
		return nil, err
	}
	return &State{Path: path, Extra: canon}, nil
}

// FromPayload recovers a State from an opaque host route payload. Returns
// false when the payload was not produced by this engine.
func FromPayload(v any) (*State, bool) {
	st, ok := v.(*State)
	if !ok || st == nil {
		return nil, false
	}
	return st, true
}
