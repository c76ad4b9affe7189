package server_test

import (
	"fmt"
	"testing"

	"github.com/privchat/privchat/internal/server"
)

func testMessage(sender, receiver, content string) server.Message {
	return server.Message{
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		Type:      "text",
		Timestamp: "2025-03-01 12:00:00",
	}
}

func TestHistoryIsSymmetric(t *testing.T) {
	store := server.NewConversationStore()

	store.Append("alice", "bob", testMessage("alice", "bob", "hi"))
	store.Append("bob", "alice", testMessage("bob", "alice", "hey"))

	forward := store.History("alice", "bob")
	reverse := store.History("bob", "alice")

	if len(forward) != 2 || len(reverse) != 2 {
		t.Fatalf("History lengths = %d and %d, want 2 and 2", len(forward), len(reverse))
	}
	for i := range forward {
		if forward[i] != reverse[i] {
			t.Errorf("History diverges at index %d: %+v vs %+v", i, forward[i], reverse[i])
		}
	}
}

func TestHistoryEmptyPair(t *testing.T) {
	store := server.NewConversationStore()

	history := store.History("alice", "bob")
	if history == nil {
		t.Error("History returned nil for an unknown pair")
	}
	if len(history) != 0 {
		t.Errorf("History returned %d messages for an unknown pair", len(history))
	}
}

func TestHistoryPreservesInsertionOrder(t *testing.T) {
	store := server.NewConversationStore()

	const n = 10
	for i := 0; i < n; i++ {
		// Alternate direction; the conversation log is shared either way.
		if i%2 == 0 {
			store.Append("alice", "bob", testMessage("alice", "bob", fmt.Sprintf("msg-%d", i)))
		} else {
			store.Append("bob", "alice", testMessage("bob", "alice", fmt.Sprintf("msg-%d", i)))
		}
	}

	history := store.History("alice", "bob")
	if len(history) != n {
		t.Fatalf("History length = %d, want %d", len(history), n)
	}
	for i, msg := range history {
		if want := fmt.Sprintf("msg-%d", i); msg.Content != want {
			t.Errorf("History[%d].Content = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := server.NewConversationStore()
	store.Append("alice", "bob", testMessage("alice", "bob", "original"))

	history := store.History("alice", "bob")
	history[0].Content = "tampered"

	if got := store.History("alice", "bob")[0].Content; got != "original" {
		t.Errorf("Stored message mutated through returned slice: %q", got)
	}
}

func TestPairsAreIndependent(t *testing.T) {
	store := server.NewConversationStore()

	store.Append("alice", "bob", testMessage("alice", "bob", "for bob"))
	store.Append("alice", "carol", testMessage("alice", "carol", "for carol"))

	if got := len(store.History("alice", "bob")); got != 1 {
		t.Errorf("alice/bob history length = %d, want 1", got)
	}
	if got := len(store.History("carol", "alice")); got != 1 {
		t.Errorf("alice/carol history length = %d, want 1", got)
	}
	if got := len(store.History("bob", "carol")); got != 0 {
		t.Errorf("bob/carol history length = %d, want 0", got)
	}
}
