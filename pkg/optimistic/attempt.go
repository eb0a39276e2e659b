package optimistic

import (
	"context"

	"github.com/daviddao/optimist/pkg/model"
)

// Attempt tracks one confirmation started by Apply or Retry.
type Attempt[T any] struct {
	id   string
	done chan struct{}

	// Written before done is closed.
	result   model.Entity[T]
	resolved bool
}

func newAttempt[T any](id string) *Attempt[T] {
	return &Attempt[T]{id: id, done: make(chan struct{})}
}

// ID returns the speculative id the attempt was started for.
func (a *Attempt[T]) ID() string { return a.id }

// Done is closed once the confirmation has resolved, whether it was applied
// or discarded as stale.
func (a *Attempt[T]) Done() <-chan struct{} { return a.done }

// Wait blocks until the attempt resolves or ctx is done.
func (a *Attempt[T]) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the entity as it stood right after this attempt resolved.
// The boolean is false while the attempt is in flight and when its
// resolution was discarded because the entity had been cancelled.
func (a *Attempt[T]) Result() (model.Entity[T], bool) {
	select {
	case <-a.done:
		return a.result, a.resolved
	default:
		return model.Entity[T]{}, false
	}
}

func (a *Attempt[T]) settle(e model.Entity[T]) {
	a.result = e
	a.resolved = true
}
