package idgen

import (
	"regexp"
	"testing"
)

func TestNewNotificationID_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^nt-[a-zA-Z0-9]{16}$`)
	for i := 0; i < 100; i++ {
		id, err := NewNotificationID()
		if err != nil {
			t.Fatalf("NewNotificationID() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("NewNotificationID() = %q, does not match %s", id, pattern)
		}
		if !IsNotificationID(id) {
			t.Fatalf("IsNotificationID(%q) = false", id)
		}
	}
}

func TestNewNotificationID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := NewNotificationID()
		if err != nil {
			t.Fatalf("NewNotificationID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestWithPrefix(t *testing.T) {
	id, err := WithPrefix("x-")
	if err != nil {
		t.Fatalf("WithPrefix() error: %v", err)
	}
	if len(id) != len("x-")+Length || id[:2] != "x-" {
		t.Errorf("WithPrefix(\"x-\") = %q", id)
	}
}

func TestIsNotificationID(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"nt-abcdefghijklmnop", true},
		{"nt-ABCDEFGHIJ012345", true},
		{"nt-short", false},
		{"bd-abcdefghijklmnop", false},
		{"nt-abcdefghijklmno!", false},
		{"", false},
	} {
		if got := IsNotificationID(tc.in); got != tc.want {
			t.Errorf("IsNotificationID(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
