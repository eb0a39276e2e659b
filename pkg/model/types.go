// Package model defines the core domain types for optimist.
//
// Optimist lets a caller see its own change immediately, before the
// authority that owns the data has acknowledged it, using two ideas:
//
//   - Speculative entities: a locally applied value carries its origin
//     (speculative or confirmed) and a lifecycle status (sending, sent,
//     errored). The collection converges to confirmed-or-explicitly-failed.
//
//   - Bounded history: linear undo/redo over any value type, capped at a
//     fixed depth, where a new edit after an undo invalidates the redo branch.
//
// The types here carry no behavior beyond small predicates; the state
// machines live in pkg/optimistic and pkg/history.
package model

import (
	"fmt"
	"time"
)

// Origin records who produced the current version of an entity.
type Origin string

const (
	OriginSpeculative Origin = "speculative"
	OriginConfirmed   Origin = "confirmed"
)

// Status is the lifecycle position of an entity.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusErrored Status = "errored"
)

// Identity is stamped onto speculative entities until the confirming
// authority supplies the canonical author.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// IsZero reports whether no identity field is set.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// Entity is one element of an optimistic collection.
//
// A confirmed entity is always Sent. ErrorDetail is non-empty only while
// Status is Errored.
type Entity[T any] struct {
	ID          string    `json:"id"`
	Payload     T         `json:"payload"`
	Author      Identity  `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	Origin      Origin    `json:"origin"`
	Status      Status    `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// IsPending reports whether the entity is awaiting confirmation.
func (e Entity[T]) IsPending() bool { return e.Status == StatusSending }

// IsErrored reports whether the last confirmation attempt failed.
func (e Entity[T]) IsErrored() bool { return e.Status == StatusErrored }

// IsConfirmed reports whether the authority has acknowledged the entity.
func (e Entity[T]) IsConfirmed() bool { return e.Origin == OriginConfirmed }

// Message is a confirmed chat message as persisted by the store.
type Message struct {
	ID           int64     `json:"id"`
	Conversation string    `json:"conversation"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name,omitempty"`
	Body         string    `json:"body"`
	LamportTS    int64     `json:"lamport_ts"`
	CreatedAt    time.Time `json:"created_at"`
}

// EntityID returns the canonical collection id of a stored message.
func (m Message) EntityID() string {
	return fmt.Sprintf("msg-%d", m.ID)
}

// Author returns the message author as an Identity.
func (m Message) Author() Identity {
	return Identity{ID: m.AuthorID, DisplayName: m.AuthorName}
}
