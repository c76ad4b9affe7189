// Package server routes inbound events through the Router, which owns the
// per-connection lifecycle and dispatches between the session registry, the
// conversation store, and the hub.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Message-routing errors. The texts are client-facing: they travel verbatim
// in error events.
var (
	// ErrEmptyMessage is returned when a message body is blank after trimming.
	ErrEmptyMessage = errors.New("Message cannot be empty")

	// ErrSenderNotRegistered is returned when the sending user has no live
	// session.
	ErrSenderNotRegistered = errors.New("User not registered")

	// ErrInvalidReceiver is returned when the receiver is missing or has no
	// live session.
	ErrInvalidReceiver = errors.New("Please select a valid user to chat with")

	// ErrInvalidUsers is returned when a history request does not name both
	// participants.
	ErrInvalidUsers = errors.New("Invalid users")
)

// errInvalidEvent covers frames that cannot be decoded at all. Not part of
// the routing taxonomy: it reports a malformed envelope, not a rejected
// operation.
var errInvalidEvent = errors.New("Invalid event format")

// Router validates and dispatches every inbound event. Each connection moves
// through a linear lifecycle (unregistered, registered, closed); events
// arriving in the wrong state are rejected with an error event to that
// connection only. Validation failures never affect other connections and
// never terminate the offending one.
type Router struct {
	registry *SessionRegistry
	store    *ConversationStore
	hub      *Hub
}

// NewRouter creates a Router over the given registry, store, and hub.
func NewRouter(registry *SessionRegistry, store *ConversationStore, hub *Hub) *Router {
	return &Router{
		registry: registry,
		store:    store,
		hub:      hub,
	}
}

// HandleConnect acknowledges a newly admitted connection. No registry
// mutation happens until the client registers a username.
func (rt *Router) HandleConnect(c *Client) {
	rt.emit(c, EventConnectionResponse, connectionResponse{Data: "Connected to server"})
}

// HandleEvent decodes one inbound frame and dispatches it.
func (rt *Router) HandleEvent(c *Client, raw []byte) {
	if c.currentState() == stateClosed {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid event from %s: %v", c.addr, err)
		rt.emitError(c, errInvalidEvent.Error())
		return
	}

	switch env.Event {
	case EventRegisterUser:
		rt.handleRegisterUser(c, env.Data)
	case EventSendMessage:
		if c.currentState() != stateRegistered {
			rt.emitError(c, ErrSenderNotRegistered.Error())
			return
		}
		rt.handleSendMessage(c, env.Data)
	case EventGetConversation:
		if c.currentState() != stateRegistered {
			rt.emitError(c, ErrSenderNotRegistered.Error())
			return
		}
		rt.handleGetConversation(c, env.Data)
	default:
		rt.emitError(c, fmt.Sprintf("Unknown event: %q", env.Event))
	}
}

// handleRegisterUser claims a username for the connection. On success every
// connection learns about the new user before the caller gets its
// confirmation with the full user list.
func (rt *Router) handleRegisterUser(c *Client, data json.RawMessage) {
	var req registerUserRequest
	if err := json.Unmarshal(data, &req); err != nil {
		rt.emitError(c, errInvalidEvent.Error())
		return
	}

	if c.currentState() != stateUnregistered {
		rt.emitError(c, "Connection already registered")
		return
	}

	session, err := rt.registry.Register(req.Username, c.id)
	if err != nil {
		rt.emitError(c, err.Error())
		return
	}

	if !c.setRegistered(session.Username) {
		// The connection closed while the registration was in flight; give
		// the name back so it is immediately reclaimable.
		rt.registry.RemoveByConn(c.id)
		return
	}

	rt.broadcast(EventUserJoined, presenceUpdate{
		Username:   session.Username,
		Timestamp:  nowTimestamp(),
		TotalUsers: rt.registry.Count(),
	})

	rt.emit(c, EventUserRegistered, userRegisteredResponse{
		Username:    session.Username,
		Success:     true,
		ActiveUsers: rt.registry.Usernames(),
	})

	log.Printf("User registered: %s", session.Username)
}

// handleSendMessage validates, stores, and delivers one private message. The
// message goes to the receiver's connection only; the sender gets a dispatch
// confirmation, not a read acknowledgement.
func (rt *Router) handleSendMessage(c *Client, data json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		rt.emitError(c, errInvalidEvent.Error())
		return
	}

	content := strings.TrimSpace(req.Message)
	if content == "" {
		rt.emitError(c, ErrEmptyMessage.Error())
		return
	}

	if _, ok := rt.registry.Lookup(req.Sender); !ok {
		rt.emitError(c, ErrSenderNotRegistered.Error())
		return
	}

	receiver, ok := rt.registry.Lookup(req.Receiver)
	if req.Receiver == "" || !ok {
		rt.emitError(c, ErrInvalidReceiver.Error())
		return
	}

	msgType := req.Type
	if msgType == "" {
		msgType = "text"
	}

	timestamp := nowTimestamp()
	msg := Message{
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Content:   content,
		Type:      msgType,
		Timestamp: timestamp,
		MessageID: messageID(req.Sender, timestamp),
	}

	rt.store.Append(msg.Sender, msg.Receiver, msg)

	// Best-effort delivery: the receiver's connection may already be gone.
	if receiverClient, live := rt.hub.clientByID(receiver.ConnID); live {
		rt.emit(receiverClient, EventReceiveMessage, msg)
	}

	log.Printf("Message from %s to %s: %s", msg.Sender, msg.Receiver, truncate(msg.Content, 50))

	rt.emit(c, EventMessageSent, messageSentResponse{
		Success:   true,
		MessageID: msg.MessageID,
		Timestamp: nowTimestamp(),
	})
}

// handleGetConversation returns the full ordered history for a user pair.
// Neither participant needs to be online.
func (rt *Router) handleGetConversation(c *Client, data json.RawMessage) {
	var req getConversationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		rt.emitError(c, errInvalidEvent.Error())
		return
	}

	if req.User1 == "" || req.User2 == "" {
		rt.emitError(c, ErrInvalidUsers.Error())
		return
	}

	rt.emit(c, EventConversationHistory, conversationHistoryResponse{
		User1:    req.User1,
		User2:    req.User2,
		Messages: rt.store.History(req.User1, req.User2),
	})
}

// HandleDisconnect releases the connection's session, if it had one, and
// announces the departure to the remaining connections. A connection that
// never registered leaves silently.
func (rt *Router) HandleDisconnect(c *Client) {
	c.markClosed()

	session, ok := rt.registry.RemoveByConn(c.id)
	if !ok {
		return
	}

	rt.broadcast(EventUserLeft, presenceUpdate{
		Username:   session.Username,
		Timestamp:  nowTimestamp(),
		TotalUsers: rt.registry.Count(),
	})

	log.Printf("User disconnected: %s", session.Username)
}

// emit delivers one event to a single connection, fire-and-forget.
func (rt *Router) emit(c *Client, event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", event, err)
		return
	}
	if !rt.hub.sendTo(c, data) {
		log.Printf("Dropped %s event for connection %s", event, c.id)
	}
}

// emitError reports a validation failure to the originating connection only.
func (rt *Router) emitError(c *Client, message string) {
	rt.emit(c, EventError, errorResponse{Message: message})
}

// broadcast delivers one event to every connection.
func (rt *Router) broadcast(event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s broadcast: %v", event, err)
		return
	}
	rt.hub.Broadcast(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
