// Package confirm builds and decorates optimistic.ConfirmFunc values.
//
// Persist turns the SQLite store into a confirming authority for chat
// messages. The decorators add the behavior the manager deliberately leaves
// to its caller: deadlines, artificial latency and fault injection.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/daviddao/optimist/pkg/model"
	"github.com/daviddao/optimist/pkg/optimistic"
	"github.com/daviddao/optimist/pkg/store"
)

// ErrInjected is the failure returned by Flaky.
var ErrInjected = errors.New("confirm: injected failure")

// Persist returns a ConfirmFunc that writes each payload as a message in
// conversation and answers with the stored message as a confirmed entity.
func Persist(st store.StoreInterface, conversation string, author model.Identity) optimistic.ConfirmFunc[string] {
	return func(ctx context.Context, body string) (model.Entity[string], error) {
		m, err := st.InsertMessage(ctx, &model.Message{
			Conversation: conversation,
			AuthorID:     author.ID,
			AuthorName:   author.DisplayName,
			Body:         body,
		})
		if err != nil {
			return model.Entity[string]{}, fmt.Errorf("persist message: %w", err)
		}
		return Entity(*m), nil
	}
}

// Entity converts a stored message into a confirmed entity.
func Entity(m model.Message) model.Entity[string] {
	return model.Entity[string]{
		ID:        m.EntityID(),
		Payload:   m.Body,
		Author:    m.Author(),
		CreatedAt: m.CreatedAt,
		Origin:    model.OriginConfirmed,
		Status:    model.StatusSent,
	}
}

// FromHydrated converts stored messages into the collection SetCollection
// expects, preserving order.
func FromHydrated(msgs []model.Message) []model.Entity[string] {
	out := make([]model.Entity[string], len(msgs))
	for i, m := range msgs {
		out[i] = Entity(m)
	}
	return out
}

// WithTimeout bounds every confirmation by d. A non-positive d returns fn
// unchanged.
func WithTimeout[T any](fn optimistic.ConfirmFunc[T], d time.Duration) optimistic.ConfirmFunc[T] {
	if d <= 0 {
		return fn
	}
	return func(ctx context.Context, payload T) (model.Entity[T], error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return fn(ctx, payload)
	}
}

// WithLatency delays every confirmation by d, giving up early if ctx is
// done. A non-positive d returns fn unchanged.
func WithLatency[T any](fn optimistic.ConfirmFunc[T], d time.Duration) optimistic.ConfirmFunc[T] {
	if d <= 0 {
		return fn
	}
	return func(ctx context.Context, payload T) (model.Entity[T], error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return model.Entity[T]{}, ctx.Err()
		case <-t.C:
		}
		return fn(ctx, payload)
	}
}

// Flaky fails a fraction rate of confirmations with ErrInjected before they
// reach fn. rnd may be nil for a time-seeded source. A rate <= 0 returns fn
// unchanged.
func Flaky[T any](fn optimistic.ConfirmFunc[T], rate float64, rnd *rand.Rand) optimistic.ConfirmFunc[T] {
	if rate <= 0 {
		return fn
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex
	return func(ctx context.Context, payload T) (model.Entity[T], error) {
		mu.Lock()
		fail := rnd.Float64() < rate
		mu.Unlock()
		if fail {
			return model.Entity[T]{}, ErrInjected
		}
		return fn(ctx, payload)
	}
}
