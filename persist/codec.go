package persist

import (
	"encoding/json"
	"fmt"

	"github.com/navkit-dev/navkit/core/navstate"
	"github.com/navkit-dev/navkit/history"
)

// Record is the serialized shape of one history step. Extra is omitted when
// absent or when any of its values fails the recursive serializability check.
type Record struct {
	Path  string         `json:"path"`
	Extra navstate.Extra `json:"extra,omitempty"`
}

// Encode serializes history steps into a snapshot. Extras that would not
// survive a JSON round trip are dropped from their record rather than
// failing the whole snapshot.
func Encode(steps []history.Step) ([]byte, error) {
	records := make([]Record, 0, len(steps))
	for _, step := range steps {
		rec := Record{Path: step.Path}
		if len(step.Current.Extra) > 0 && navstate.Serializable(step.Current.Extra) {
			rec.Extra = step.Current.Extra
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return data, nil
}

// Decode parses a snapshot back into records, tolerating malformed entries:
// an element that is not a map or lacks a non-empty string path is skipped,
// and an extra field that is present but not a map is dropped while the
// entry's path is kept. Each tolerated defect is reported as a warning. Only
// a snapshot that is not a JSON list at all fails outright, returning nil
// records and a single ErrBadSnapshot warning.
func Decode(data []byte) ([]Record, []error) {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, []error{fmt.Errorf("%w: %v", ErrBadSnapshot, err)}
	}

	var (
		records []Record
		warns   []error
	)
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			warns = append(warns, fmt.Errorf("%w: entry %d is not a map", ErrBadEntry, i))
			continue
		}

		path, ok := entry["path"].(string)
		if !ok || path == "" {
			warns = append(warns, fmt.Errorf("%w: entry %d missing path", ErrBadEntry, i))
			continue
		}

		rec := Record{Path: path}
		if rawExtra, present := entry["extra"]; present {
			if extra, ok := rawExtra.(map[string]any); ok {
				rec.Extra = navstate.Extra(extra)
			} else {
				warns = append(warns, fmt.Errorf("%w: entry %d extra is not a map", ErrBadEntry, i))
			}
		}
		records = append(records, rec)
	}
	return records, warns
}
