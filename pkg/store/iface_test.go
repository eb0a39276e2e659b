package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/daviddao/optimist/pkg/model"
)

// TestStoreImplementsInterface verifies at runtime that *Store satisfies
// StoreInterface by calling every method on a real store.
func TestStoreImplementsInterface(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var iface StoreInterface = s
	defer iface.Close()

	m, err := iface.InsertMessage(ctx, &model.Message{Conversation: "general", AuthorID: "alice", Body: "hello"})
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	got, err := iface.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Body != "hello" {
		t.Errorf("GetMessage body = %q, want hello", got.Body)
	}

	msgs, err := iface.ListMessages(ctx, "general", 0, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 message, got %d", len(msgs))
	}

	all, err := iface.ListConversation(ctx, "general")
	if err != nil || len(all) != 1 {
		t.Errorf("ListConversation = %d messages, %v; want 1, nil", len(all), err)
	}

	n, err := iface.CountMessages(ctx, "general")
	if err != nil || n != 1 {
		t.Errorf("CountMessages = %d, %v; want 1, nil", n, err)
	}

	v, err := iface.ClockValue(ctx, "general")
	if err != nil || v != 1 {
		t.Errorf("ClockValue = %d, %v; want 1, nil", v, err)
	}
}
