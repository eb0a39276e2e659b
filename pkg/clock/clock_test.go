package clock

import (
	"testing"
	"time"
)

func TestSystemIsUTC(t *testing.T) {
	if loc := (System{}).Now().Location(); loc != time.UTC {
		t.Fatalf("System.Now location = %v, want UTC", loc)
	}
}

func TestManualOnlyMovesOnAdvance(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManual(start)
	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("Now = %v, want %v", got, start)
	}
	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("second Now = %v, want %v", got, start)
	}
	next := m.Advance(time.Second)
	if !next.Equal(start.Add(time.Second)) {
		t.Fatalf("Advance returned %v", next)
	}
	if got := m.Now(); !got.Equal(next) {
		t.Fatalf("Now after Advance = %v, want %v", got, next)
	}
}

func TestTickStartsFromZero(t *testing.T) {
	var c Clock
	if v := c.Value(); v != 0 {
		t.Fatalf("new clock: got %d, want 0", v)
	}
	if ts := c.Tick(); ts != 1 {
		t.Fatalf("first Tick: got %d, want 1", ts)
	}
}

func TestReceiveMaxPlusOne(t *testing.T) {
	var c Clock
	c.Set(5)

	if ts := c.Receive(10); ts != 11 {
		t.Fatalf("Receive(10) from 5: got %d, want 11", ts)
	}
	if ts := c.Receive(3); ts != 12 {
		t.Fatalf("Receive(3) from 11: got %d, want 12", ts)
	}
}

func TestSetThenTick(t *testing.T) {
	var c Clock
	c.Set(100)
	if ts := c.Tick(); ts != 101 {
		t.Fatalf("Tick after Set(100): got %d, want 101", ts)
	}
}
