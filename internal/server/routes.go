// Package server wires HTTP handlers into a ServeMux for the PrivChat relay
// via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, and the active-user query.
func SetupRoutes(hub *Hub, registry *SessionRegistry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", NewWebSocketHandler(hub))
	mux.HandleFunc("/api/users", NewUsersHandler(registry))
	return mux
}
