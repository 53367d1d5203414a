package uuid

import (
	"testing"
)

func TestNewGeneratesValidV4(t *testing.T) {
	id := New()
	if id == "" {
		t.Fatal("empty id")
	}
	if !IsValid(id) {
		t.Errorf("generated id fails validation: %s", id)
	}
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"00000000-0000-4000-8000-000000000000", true},
		{"6BA7B810-9DAD-41D1-80B4-00C04FD430C8", true},
		{"", false},
		{"f47ac10b-58cc-4372-a567", false},
		{"f47ac10b58cc4372a5670e02b2c3d479", false},
		{"f47ac10b-58cc-1372-a567-0e02b2c3d479", false}, // v1, not v4
		{"f47ac10b-58cc-4372-c567-0e02b2c3d479", false}, // bad variant
		{"not-a-uuid", false},
	}
	for _, tc := range cases {
		if got := IsValid(tc.id); got != tc.want {
			t.Errorf("IsValid(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("Validate rejected generated id: %v", err)
	}
	if err := Validate("nope"); err == nil {
		t.Error("Validate accepted garbage")
	}
}
