// Package clock provides the time sources optimist stamps entities with.
//
// Two kinds of clocks live here:
//
//   - Source is wall time. Managers take a Source so tests can pin the
//     timestamps embedded in speculative ids and CreatedAt fields.
//
//   - Clock is a Lamport logical clock. The store ticks one per
//     conversation to give confirmed messages a total order that does not
//     depend on wall-clock agreement between writers.
//
// From Lamport (1978), two implementation rules govern the logical clock:
//
//	IR1 (internal event): Before any internal event, increment the clock.
//	IR2 (message receipt): On receiving a message with timestamp t,
//	     set the clock to max(own, t) + 1.
package clock

import (
	"sync"
	"time"
)

// Source yields the current time.
type Source interface {
	Now() time.Time
}

// System is the UTC wall clock.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Manual is a Source that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual returns a Manual clock starting at t.
func NewManual(t time.Time) *Manual { return &Manual{t: t} }

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
	return m.t
}

// Clock is a Lamport logical clock.
//
// Not goroutine-safe. Each instance is seeded from the store inside a
// transaction and discarded when the transaction ends.
type Clock struct {
	ts int64
}

// Tick implements IR1 and returns the new timestamp.
func (c *Clock) Tick() int64 {
	c.ts++
	return c.ts
}

// Receive implements IR2 and returns the new timestamp.
func (c *Clock) Receive(received int64) int64 {
	if received > c.ts {
		c.ts = received
	}
	c.ts++
	return c.ts
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() int64 { return c.ts }

// Set seeds the clock, typically from the persisted value.
func (c *Clock) Set(v int64) { c.ts = v }
