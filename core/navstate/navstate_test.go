package navstate_test

import (
	"errors"
	"testing"

	"github.com/navkit-dev/navkit/core/navstate"
)

func TestCanonical_RoundTrip(t *testing.T) {
	extra := navstate.Extra{
		"id":    "abc123",
		"count": 3,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"nested": true},
	}

	canon, err := navstate.Canonical(extra)
	if err != nil {
		t.Fatalf("Canonical() error = %v", err)
	}

	if canon["id"] != "abc123" {
		t.Errorf("canon[id] = %v, want %q", canon["id"], "abc123")
	}
	// JSON numbers decode as float64.
	if canon["count"] != float64(3) {
		t.Errorf("canon[count] = %v (%T), want float64(3)", canon["count"], canon["count"])
	}
	tags, ok := canon["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("canon[tags] = %v, want 2-element list", canon["tags"])
	}
	meta, ok := canon["meta"].(map[string]any)
	if !ok || meta["nested"] != true {
		t.Errorf("canon[meta] = %v, want map with nested=true", canon["meta"])
	}
}

func TestCanonical_Empty(t *testing.T) {
	canon, err := navstate.Canonical(nil)
	if err != nil {
		t.Fatalf("Canonical(nil) error = %v", err)
	}
	if canon != nil {
		t.Errorf("Canonical(nil) = %v, want nil", canon)
	}

	canon, err = navstate.Canonical(navstate.Extra{})
	if err != nil {
		t.Fatalf("Canonical(empty) error = %v", err)
	}
	if canon != nil {
		t.Errorf("Canonical(empty) = %v, want nil", canon)
	}
}

func TestCanonical_NotSerializable(t *testing.T) {
	_, err := navstate.Canonical(navstate.Extra{"fn": func() {}})
	if !errors.Is(err, navstate.ErrNotSerializable) {
		t.Errorf("Canonical() error = %v, want %v", err, navstate.ErrNotSerializable)
	}
}

func TestNew(t *testing.T) {
	st, err := navstate.New("/product/1", navstate.Extra{"qty": 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if st.Path != "/product/1" {
		t.Errorf("st.Path = %q, want %q", st.Path, "/product/1")
	}
	if st.Extra["qty"] != float64(2) {
		t.Errorf("st.Extra[qty] = %v, want float64(2)", st.Extra["qty"])
	}
}

func TestNew_NotSerializable(t *testing.T) {
	_, err := navstate.New("/p", navstate.Extra{"ch": make(chan int)})
	if !errors.Is(err, navstate.ErrNotSerializable) {
		t.Errorf("New() error = %v, want %v", err, navstate.ErrNotSerializable)
	}
}

func TestFromPayload(t *testing.T) {
	st, _ := navstate.New("/home", nil)

	got, ok := navstate.FromPayload(st)
	if !ok {
		t.Fatal("FromPayload(engine state) = false, want true")
	}
	if got.Path != "/home" {
		t.Errorf("got.Path = %q, want %q", got.Path, "/home")
	}
}

func TestFromPayload_Foreign(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		{"nil", nil},
		{"string", "not a state"},
		{"map", map[string]any{"path": "/home"}},
		{"nil state pointer", (*navstate.State)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := navstate.FromPayload(tt.payload); ok {
				t.Errorf("FromPayload(%v) = true, want false", tt.payload)
			}
		})
	}
}

func TestSerializable(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected bool
	}{
		{"nil", nil, true},
		{"bool", true, true},
		{"string", "x", true},
		{"int", 42, true},
		{"float", 3.14, true},
		{"flat list", []any{"a", 1, true}, true},
		{"flat map", map[string]any{"k": "v"}, true},
		{"nested", map[string]any{"l": []any{map[string]any{"ok": true}}}, true},
		{"func", func() {}, false},
		{"chan", make(chan int), false},
		{"struct", struct{ X int }{1}, false},
		{"poisoned list", []any{"a", make(chan int)}, false},
		{"poisoned map", map[string]any{"k": func() {}}, false},
		{"extra type", navstate.Extra{"k": "v"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := navstate.Serializable(tt.value); got != tt.expected {
				t.Errorf("Serializable(%v) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}
