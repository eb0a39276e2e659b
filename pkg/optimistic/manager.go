// Package optimistic applies a caller's change to a local collection before
// the confirming authority has acknowledged it, then reconciles the result.
//
// Every entity moves through a small state machine:
//
//	Apply            -> {Speculative, Sending}
//	confirm succeeds -> {Confirmed, Sent}        (replaced in place)
//	confirm fails    -> {Speculative, Errored}   (kept for Retry/Cancel)
//	Retry            -> {Speculative, Sending}   (only from Errored)
//	Cancel           -> removed                  (idempotent)
//
// The pending set holds exactly the ids whose status is Sending; IsSending
// reports whether it is non-empty. Registration in the pending set carries
// an attempt sequence number, and a resolution is applied only if its id is
// still pending under that sequence. A confirmation that resolves after its
// entity was cancelled or hydrated away is therefore discarded silently.
//
// Confirmation failures never surface as errors from Apply or Retry; they
// are captured in Entity.ErrorDetail. Calling Retry on an entity that is
// not errored is a precondition violation reported as ErrInvalidState.
//
// Callers are expected to drive a Manager from one logical owner. Because
// confirmations resolve on their own goroutines, the Manager serializes its
// mutation path internally; observers run after the mutation, outside that
// lock, on the resolving goroutine.
package optimistic

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/daviddao/optimist/pkg/clock"
	"github.com/daviddao/optimist/pkg/model"
)

// ConfirmFunc asks the authority to accept payload. On success it returns
// the confirmed entity; the Manager fills in Origin and Status. An empty ID
// keeps the speculative id.
type ConfirmFunc[T any] func(ctx context.Context, payload T) (model.Entity[T], error)

// Options configures a Manager. Only Confirm is required.
type Options[T any] struct {
	Confirm     ConfirmFunc[T]
	OnConfirmed func(model.Entity[T])
	OnFailed    func(err error, e model.Entity[T])

	// Identity is stamped onto speculative entities.
	Identity model.Identity

	Clock  clock.Source
	NewID  func(now time.Time) string
	Logger *zap.Logger

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Manager owns an ordered collection of entities and their pending set.
type Manager[T any] struct {
	confirm     ConfirmFunc[T]
	onConfirmed func(model.Entity[T])
	onFailed    func(error, model.Entity[T])
	identity    model.Identity
	clock       clock.Source
	newID       func(time.Time) string
	log         *zap.Logger
	tel         *telemetry

	mu       sync.Mutex
	entities []model.Entity[T]
	pending  map[string]uint64
	seq      uint64

	// inflight counts running confirmations; idle is closed whenever it
	// drops to zero. Both are guarded by mu.
	inflight int
	idle     chan struct{}
}

// New returns an empty Manager.
func New[T any](opts Options[T]) (*Manager[T], error) {
	if opts.Confirm == nil {
		return nil, ErrNoConfirm
	}
	m := &Manager[T]{
		confirm:     opts.Confirm,
		onConfirmed: opts.OnConfirmed,
		onFailed:    opts.OnFailed,
		identity:    opts.Identity,
		clock:       opts.Clock,
		newID:       opts.NewID,
		log:         opts.Logger,
		pending:     make(map[string]uint64),
		idle:        make(chan struct{}),
	}
	close(m.idle)
	if m.clock == nil {
		m.clock = clock.System{}
	}
	if m.newID == nil {
		m.newID = NewSpeculativeID
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	tel, err := newTelemetry(opts.TracerProvider, opts.MeterProvider)
	if err != nil {
		return nil, err
	}
	m.tel = tel
	return m, nil
}

// Apply inserts payload as a speculative entity at the end of the
// collection and starts its confirmation. It returns without waiting.
func (m *Manager[T]) Apply(ctx context.Context, payload T) *Attempt[T] {
	now := m.clock.Now()
	e := model.Entity[T]{
		ID:        m.newID(now),
		Payload:   payload,
		Author:    m.identity,
		CreatedAt: now,
		Origin:    model.OriginSpeculative,
		Status:    model.StatusSending,
	}

	m.mu.Lock()
	m.entities = append(m.entities, e)
	seq := m.register(e.ID)
	m.beginLocked()
	m.mu.Unlock()

	m.log.Debug("applied speculative entity", zap.String("id", e.ID), zap.Uint64("attempt", seq))
	return m.launch(ctx, e, seq, false)
}

// Retry re-sends an errored entity with its original payload. The entity
// keeps its position. It returns ErrInvalidState if id does not exist or is
// not errored, which also rejects a second retry while one is in flight.
func (m *Manager[T]) Retry(ctx context.Context, id string) (*Attempt[T], error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: retry %q: no such entity", ErrInvalidState, id)
	}
	e := m.entities[i]
	if e.Status != model.StatusErrored {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: retry %q: status is %s, want %s",
			ErrInvalidState, id, e.Status, model.StatusErrored)
	}
	e.Status = model.StatusSending
	e.ErrorDetail = ""
	m.entities[i] = e
	seq := m.register(id)
	m.beginLocked()
	m.mu.Unlock()

	m.log.Debug("retrying entity", zap.String("id", id), zap.Uint64("attempt", seq))
	return m.launch(ctx, e, seq, true), nil
}

// Cancel removes id from the collection and the pending set. It does not
// stop an in-flight confirmation; that resolution will be discarded.
// Cancelling an unknown id is a no-op. Reports whether anything was removed.
func (m *Manager[T]) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, wasPending := m.pending[id]
	delete(m.pending, id)
	i := m.indexOf(id)
	if i < 0 {
		return wasPending
	}
	m.entities = slices.Delete(m.entities, i, i+1)
	m.log.Debug("cancelled entity", zap.String("id", id), zap.Bool("was_pending", wasPending))
	return true
}

// SetCollection replaces the collection, typically with authoritative data.
// It fails, leaving state untouched, with ErrDuplicateID when two entities
// share an id and with ErrInvalidEntity when an entity has no id or an
// unknown Origin or Status.
//
// Entities are normalized onto the lifecycle: an empty Origin means
// Confirmed, and confirmed entities are Sent. A speculative entity has no
// confirmation running for it after hydration, so unless it is already
// Errored it is marked Errored ("confirmation interrupted") and can be
// retried or cancelled. Resolutions of attempts started before the call are
// discarded.
func (m *Manager[T]) SetCollection(entities []model.Entity[T]) error {
	seen := make(map[string]struct{}, len(entities))
	next := make([]model.Entity[T], len(entities))
	for i, e := range entities {
		if e.ID == "" {
			return fmt.Errorf("%w: entity %d has no id", ErrInvalidEntity, i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}

		switch e.Status {
		case "", model.StatusSending, model.StatusSent, model.StatusErrored:
		default:
			return fmt.Errorf("%w: %q has status %q", ErrInvalidEntity, e.ID, e.Status)
		}

		switch e.Origin {
		case "", model.OriginConfirmed:
			e.Origin = model.OriginConfirmed
			e.Status = model.StatusSent
			e.ErrorDetail = ""
		case model.OriginSpeculative:
			if e.Status != model.StatusErrored {
				e.Status = model.StatusErrored
				e.ErrorDetail = "confirmation interrupted"
			}
			if e.ErrorDetail == "" {
				e.ErrorDetail = "confirmation failed"
			}
		default:
			return fmt.Errorf("%w: %q has origin %q", ErrInvalidEntity, e.ID, e.Origin)
		}
		next[i] = e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = next
	clear(m.pending)
	return nil
}

// IsSending reports whether any confirmation is pending.
func (m *Manager[T]) IsSending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// PendingCount returns the size of the pending set.
func (m *Manager[T]) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingIDs returns the pending set, sorted.
func (m *Manager[T]) PendingIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entities returns a copy of the collection in insertion order.
func (m *Manager[T]) Entities() []model.Entity[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entities)
}

// Get returns the entity with the given id.
func (m *Manager[T]) Get(id string) (model.Entity[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.entities[i], true
	}
	return model.Entity[T]{}, false
}

// Len returns the number of entities in the collection.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// Wait blocks until no confirmation is running, or ctx is done.
// Confirmations started while Wait blocks are waited for as well.
func (m *Manager[T]) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.inflight == 0 {
			m.mu.Unlock()
			return nil
		}
		idle := m.idle
		m.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// beginLocked counts a confirmation about to be launched, in the same
// critical section that registers it. Callers hold m.mu.
func (m *Manager[T]) beginLocked() {
	if m.inflight == 0 {
		m.idle = make(chan struct{})
	}
	m.inflight++
}

// finished is deferred by every launched confirmation.
func (m *Manager[T]) finished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	if m.inflight == 0 {
		close(m.idle)
	}
}

// register adds id to the pending set under a fresh sequence number.
// Callers hold m.mu.
func (m *Manager[T]) register(id string) uint64 {
	m.seq++
	m.pending[id] = m.seq
	return m.seq
}

// indexOf returns the position of id, or -1. Callers hold m.mu.
func (m *Manager[T]) indexOf(id string) int {
	return slices.IndexFunc(m.entities, func(e model.Entity[T]) bool { return e.ID == id })
}

func (m *Manager[T]) launch(ctx context.Context, e model.Entity[T], seq uint64, retry bool) *Attempt[T] {
	a := newAttempt[T](e.ID)
	go func() {
		defer m.finished()
		defer close(a.done)
		m.run(ctx, a, e, seq, retry)
	}()
	return a
}

// run invokes confirm for one attempt and feeds the result back through
// the mutation path.
func (m *Manager[T]) run(ctx context.Context, a *Attempt[T], e model.Entity[T], seq uint64, retry bool) {
	start := time.Now()
	spanCtx, span := m.tel.startSpan(ctx, e.ID, seq, retry)

	confirmed, err := m.invoke(spanCtx, e.Payload)
	resolved, outcome := m.commit(e.ID, seq, confirmed, err)

	m.tel.endSpan(span, outcome, err)
	m.tel.record(ctx, outcome, time.Since(start))

	switch outcome {
	case outcomeStale:
		m.log.Debug("discarded stale resolution", zap.String("id", e.ID), zap.Uint64("attempt", seq))
		return
	case outcomeFailed:
		m.log.Warn("confirmation failed", zap.String("id", e.ID), zap.Uint64("attempt", seq), zap.Error(err))
		a.settle(resolved)
		if m.onFailed != nil {
			m.onFailed(err, resolved)
		}
	case outcomeConfirmed:
		m.log.Debug("confirmed entity", zap.String("speculative_id", e.ID), zap.String("id", resolved.ID))
		a.settle(resolved)
		if m.onConfirmed != nil {
			m.onConfirmed(resolved)
		}
	}
}

// invoke calls confirm, converting a panic into an error so the attempt
// still resolves through the failure path.
func (m *Manager[T]) invoke(ctx context.Context, payload T) (confirmed model.Entity[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("confirm panicked: %v", r)
		}
	}()
	return m.confirm(ctx, payload)
}

// commit applies a resolution if id is still pending under seq. The pending
// registration is released on every path past that check.
func (m *Manager[T]) commit(id string, seq uint64, confirmed model.Entity[T], err error) (model.Entity[T], string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.pending[id]; !ok || cur != seq {
		return model.Entity[T]{}, outcomeStale
	}
	defer delete(m.pending, id)

	i := m.indexOf(id)
	if i < 0 {
		return model.Entity[T]{}, outcomeStale
	}

	if err != nil {
		e := m.entities[i]
		e.Status = model.StatusErrored
		e.ErrorDetail = err.Error()
		if e.ErrorDetail == "" {
			e.ErrorDetail = "confirmation failed"
		}
		m.entities[i] = e
		return e, outcomeFailed
	}
	return m.replace(i, confirmed), outcomeConfirmed
}

// replace swaps the speculative entity at i for its confirmed version.
// If the confirmed id already names another entity, that entity is updated
// in place and the speculative row is dropped. Callers hold m.mu.
func (m *Manager[T]) replace(i int, confirmed model.Entity[T]) model.Entity[T] {
	prev := m.entities[i]
	e := confirmed
	if e.ID == "" {
		e.ID = prev.ID
	}
	if e.Author.IsZero() {
		e.Author = prev.Author
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = prev.CreatedAt
	}
	e.Origin = model.OriginConfirmed
	e.Status = model.StatusSent
	e.ErrorDetail = ""

	if e.ID != prev.ID {
		if j := m.indexOf(e.ID); j >= 0 {
			delete(m.pending, e.ID)
			m.entities[j] = e
			m.entities = slices.Delete(m.entities, i, i+1)
			return e
		}
	}
	m.entities[i] = e
	return e
}
