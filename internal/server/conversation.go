// Package server stores per-pair message history through the
// ConversationStore.
package server

import "sync"

// pairKey canonicalizes an unordered user pair: the two names are ordered
// lexicographically before joining, so (a, b) and (b, a) index the same
// conversation.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// ConversationStore keeps the append-only message log for every user pair
// that has exchanged at least one message. Logs outlive sessions: history
// stays retrievable after either participant disconnects, for the lifetime of
// the process. All methods are safe for concurrent use.
type ConversationStore struct {
	mu   sync.RWMutex
	logs map[string][]Message
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		logs: make(map[string][]Message),
	}
}

// Append adds a message to the conversation between the two users, creating
// the log on first use. Insertion order is chronological order.
func (s *ConversationStore) Append(userA, userB string, msg Message) {
	key := pairKey(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[key] = append(s.logs[key], msg)
}

// History returns a copy of the conversation between the two users in
// chronological order. A pair that has never talked yields an empty slice,
// not an error; the slice is always non-nil so it marshals as [].
func (s *ConversationStore) History(userA, userB string) []Message {
	key := pairKey(userA, userB)

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[key]
	history := make([]Message, len(log))
	copy(history, log)
	return history
}
