package optimistic

import "errors"

var (
	// ErrNoConfirm is returned by New when Options.Confirm is nil.
	ErrNoConfirm = errors.New("optimistic: confirm function is required")

	// ErrInvalidState marks a precondition violation: Retry on an id that
	// does not exist or is not errored. It is a programming error, not a
	// runtime condition.
	ErrInvalidState = errors.New("optimistic: invalid state")

	// ErrDuplicateID is returned by SetCollection when two entities share
	// an id.
	ErrDuplicateID = errors.New("optimistic: duplicate entity id")

	// ErrInvalidEntity is returned by SetCollection for an entity with no
	// id or with an Origin or Status outside the lifecycle.
	ErrInvalidEntity = errors.New("optimistic: invalid entity")
)
