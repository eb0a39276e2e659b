// Package history implements a bounded, branch-invalidating undo/redo store
// over an arbitrary value type.
//
// A Store holds one present value and two stacks:
//
//	past    oldest first, capped at MaxHistory entries (FIFO eviction)
//	future  nearest redo first
//
// Committing a new value with Set starts a new timeline branch and empties
// future. SetKeepFuture is for authoritative updates that arrive from
// elsewhere (a server push, a sync) and must not destroy a redo chain.
//
// Note: Store is not goroutine-safe. It is meant to be owned by a single
// goroutine, the same way an editor owns its buffer.
package history

// DefaultMaxHistory is the past-stack bound used when no option is given.
const DefaultMaxHistory = 50

// Store is a bounded undo/redo value store. Not goroutine-safe; see package doc.
type Store[T any] struct {
	initial    T
	past       []T
	present    T
	future     []T
	maxHistory int

	onUndo func(T)
	onRedo func(T)
}

// State is a copied view of a Store's three fields.
type State[T any] struct {
	Past    []T `json:"past"`
	Present T   `json:"present"`
	Future  []T `json:"future"`
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithMaxHistory bounds the past stack. Zero is valid and disables undo;
// negative values are treated as zero.
func WithMaxHistory[T any](n int) Option[T] {
	return func(s *Store[T]) {
		if n < 0 {
			n = 0
		}
		s.maxHistory = n
	}
}

// WithOnUndo registers an observer called with the new present after Undo.
func WithOnUndo[T any](fn func(T)) Option[T] {
	return func(s *Store[T]) { s.onUndo = fn }
}

// WithOnRedo registers an observer called with the new present after Redo.
func WithOnRedo[T any](fn func(T)) Option[T] {
	return func(s *Store[T]) { s.onRedo = fn }
}

// New returns a Store whose present is initial and whose stacks are empty.
func New[T any](initial T, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		initial:    initial,
		present:    initial,
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set commits v as the new present and clears the redo branch.
func (s *Store[T]) Set(v T) { s.set(v, true) }

// SetKeepFuture commits v as the new present without touching the redo
// branch.
func (s *Store[T]) SetKeepFuture(v T) { s.set(v, false) }

func (s *Store[T]) set(v T, clearFuture bool) {
	s.pushPast(s.present)
	s.present = v
	if clearFuture {
		s.future = nil
	}
}

// Undo moves one step back. It returns false, and does nothing, when there
// is no past.
func (s *Store[T]) Undo() bool {
	if len(s.past) == 0 {
		return false
	}
	last := len(s.past) - 1
	prev := s.past[last]
	var zero T
	s.past[last] = zero
	s.past = s.past[:last]

	s.future = append([]T{s.present}, s.future...)
	s.present = prev
	if s.onUndo != nil {
		s.onUndo(s.present)
	}
	return true
}

// Redo moves one step forward. It returns false, and does nothing, when
// there is no future.
func (s *Store[T]) Redo() bool {
	if len(s.future) == 0 {
		return false
	}
	next := s.future[0]
	var zero T
	s.future[0] = zero
	s.future = s.future[1:]
	if len(s.future) == 0 {
		s.future = nil
	}

	s.pushPast(s.present)
	s.present = next
	if s.onRedo != nil {
		s.onRedo(s.present)
	}
	return true
}

// Clear resets to the initial value with empty stacks. Observers are not
// called.
func (s *Store[T]) Clear() {
	s.past = nil
	s.future = nil
	s.present = s.initial
}

// pushPast appends v to past, evicting from the front beyond maxHistory.
func (s *Store[T]) pushPast(v T) {
	s.past = append(s.past, v)
	if over := len(s.past) - s.maxHistory; over > 0 {
		// Evicted values must not stay reachable through the backing array.
		kept := make([]T, len(s.past)-over)
		copy(kept, s.past[over:])
		s.past = kept
	}
}

// CanUndo reports whether Undo would move.
func (s *Store[T]) CanUndo() bool { return len(s.past) > 0 }

// CanRedo reports whether Redo would move.
func (s *Store[T]) CanRedo() bool { return len(s.future) > 0 }

// Present returns the current value.
func (s *Store[T]) Present() T { return s.present }

// Past returns a copy of the undo stack, oldest first.
func (s *Store[T]) Past() []T { return clone(s.past) }

// Future returns a copy of the redo stack, nearest redo first.
func (s *Store[T]) Future() []T { return clone(s.future) }

// MaxHistory returns the past-stack bound.
func (s *Store[T]) MaxHistory() int { return s.maxHistory }

// Snapshot returns a copy of all three fields.
func (s *Store[T]) Snapshot() State[T] {
	return State[T]{
		Past:    s.Past(),
		Present: s.present,
		Future:  s.Future(),
	}
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
