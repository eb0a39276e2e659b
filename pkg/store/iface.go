// iface.go defines the StoreInterface for dependency injection and testing.
//
// The concrete *Store type satisfies this interface. Code that depends on
// the store (the confirm adapters, the CLI) accepts StoreInterface so tests
// can substitute a failing or slow implementation.
package store

import (
	"context"

	"github.com/daviddao/optimist/pkg/model"
)

// StoreInterface defines the full set of store operations.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// InsertMessage appends a message and stamps it with the conversation's
	// next Lamport timestamp.
	InsertMessage(ctx context.Context, m *model.Message) (*model.Message, error)

	// GetMessage retrieves a message by row ID.
	GetMessage(ctx context.Context, id int64) (*model.Message, error)

	// ListMessages returns a conversation's messages with lamport_ts >= sinceTS.
	ListMessages(ctx context.Context, conversation string, sinceTS int64, limit int) ([]model.Message, error)

	// ListConversation returns all of a conversation's messages in Lamport order.
	ListConversation(ctx context.Context, conversation string) ([]model.Message, error)

	// CountMessages returns the number of messages in a conversation.
	CountMessages(ctx context.Context, conversation string) (int64, error)

	// ClockValue returns a conversation's Lamport clock.
	ClockValue(ctx context.Context, conversation string) (int64, error)
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
