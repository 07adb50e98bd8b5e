package id

import (
	"regexp"
	"testing"
)

var reRequestID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewRequestID_Format(t *testing.T) {
	got := NewRequestID()
	if !reRequestID.MatchString(got) {
		t.Fatalf("not 32-char lowercase hex: %q", got)
	}
}

func TestNewRequestID_Uniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		rid := NewRequestID()
		if _, dup := seen[rid]; dup {
			t.Fatalf("duplicate after %d draws: %q", i, rid)
		}
		seen[rid] = struct{}{}
	}
}
