// Package server implements the core of the PrivChat relay: a WebSocket
// service where clients claim a username, discover who else is online, and
// exchange 1:1 private messages with server-stored conversation history.
//
// The implementation is organized into specialized files for configuration,
// the session registry, the conversation store, the event router, hub
// management, clients, and HTTP handlers to keep the codebase maintainable
// and testable as the project grows.
package server
