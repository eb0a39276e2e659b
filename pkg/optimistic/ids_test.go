package optimistic

import (
	"regexp"
	"testing"
	"time"
)

var speculativeIDPattern = regexp.MustCompile(`^optimistic-\d+-[0-9a-f]{12}$`)

func TestNewSpeculativeID_Format(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	id := NewSpeculativeID(now)
	if !speculativeIDPattern.MatchString(id) {
		t.Fatalf("id %q does not match %s", id, speculativeIDPattern)
	}
	if !IsSpeculativeID(id) {
		t.Fatalf("IsSpeculativeID(%q) = false", id)
	}
}

func TestNewSpeculativeID_UniqueAtSameInstant(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := NewSpeculativeID(now)
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestIsSpeculativeID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"optimistic-1-abc", true},
		{"msg-1", false},
		{"server-1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSpeculativeID(tt.id); got != tt.want {
			t.Errorf("IsSpeculativeID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
