// Package server defines the wire-level event catalog and message payload
// types exchanged between the relay and its clients.
package server

import (
	"encoding/json"
	"strings"
	"time"
)

// Event names accepted from clients.
const (
	EventRegisterUser    = "register_user"
	EventSendMessage     = "send_message"
	EventGetConversation = "get_conversation"
)

// Event names emitted to clients.
const (
	EventConnectionResponse  = "connection_response"
	EventUserRegistered      = "user_registered"
	EventError               = "error"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventReceiveMessage      = "receive_message"
	EventMessageSent         = "message_sent"
	EventConversationHistory = "conversation_history"
)

// timestampLayout is the wire format for all timestamps. Second precision is
// load-bearing: message ids are derived from the formatted value.
const timestampLayout = "2006-01-02 15:04:05"

// nowTimestamp formats the current server-local time for the wire.
func nowTimestamp() string {
	return time.Now().Format(timestampLayout)
}

var messageIDReplacer = strings.NewReplacer(" ", "_", ":", "")

// messageID derives a message id from the sender and a formatted timestamp.
// The derivation is deterministic, so two messages from the same sender within
// the same second share an id. Clients observe this format, so it must not
// change without versioning the wire protocol.
func messageID(sender, timestamp string) string {
	return sender + "_" + messageIDReplacer.Replace(timestamp)
}

// Envelope frames every event in both directions as a name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Message is one private message between two registered users. Immutable once
// created; conversation logs are append-only.
type Message struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

// Inbound payloads.

type registerUserRequest struct {
	Username string `json:"username"`
}

type sendMessageRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

type getConversationRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// Outbound payloads.

type connectionResponse struct {
	Data string `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type userRegisteredResponse struct {
	Username    string   `json:"username"`
	Success     bool     `json:"success"`
	ActiveUsers []string `json:"active_users"`
}

// presenceUpdate announces a user joining or leaving, paired with the new
// total of registered users.
type presenceUpdate struct {
	Username   string `json:"username"`
	Timestamp  string `json:"timestamp"`
	TotalUsers int    `json:"total_users"`
}

type messageSentResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

type conversationHistoryResponse struct {
	User1    string    `json:"user1"`
	User2    string    `json:"user2"`
	Messages []Message `json:"messages"`
}

// marshalEvent wraps a payload in the event envelope. Payload types are all
// local structs, so marshaling failures indicate a programming error.
func marshalEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
