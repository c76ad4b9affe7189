// Package integration contains integration tests that exercise the relay
// end-to-end: real HTTP server, real WebSocket connections, and the full
// register/message/history event flow.
package integration

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/privchat/privchat/internal/server"
	"github.com/privchat/privchat/test/testhelpers"
)

// Payload shapes mirrored from the wire protocol.

type presencePayload struct {
	Username   string `json:"username"`
	Timestamp  string `json:"timestamp"`
	TotalUsers int    `json:"total_users"`
}

type registeredPayload struct {
	Username    string   `json:"username"`
	Success     bool     `json:"success"`
	ActiveUsers []string `json:"active_users"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type messagePayload struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

type sentPayload struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

type historyPayload struct {
	User1    string           `json:"user1"`
	User2    string           `json:"user2"`
	Messages []messagePayload `json:"messages"`
}

type usersPayload struct {
	Users []string `json:"users"`
}

// newRelayServer starts a fully wired relay on an httptest server and returns
// the WebSocket URL and the HTTP base URL (also used as the allowed origin).
func newRelayServer(t *testing.T) (string, string) {
	t.Helper()

	registry := server.NewSessionRegistry()
	store := server.NewConversationStore()
	hub := server.NewHub()
	hub.SetHandler(server.NewRouter(registry, store, hub))
	go hub.Run()

	mux := server.SetupRoutes(hub, registry)
	ts := httptest.NewServer(mux)

	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)
	server.SetConfig(cfg)

	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
		server.SetConfig(nil)
	})

	return buildWebSocketURL(ts.URL), ts.URL
}

func buildWebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// newConfiguredServer starts an httptest server for the mux and allows its
// origin in the active configuration.
func newConfiguredServer(t *testing.T, mux http.Handler) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(mux)
	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })
	return ts
}

// connect dials the relay and consumes the connection confirmation.
func connect(t *testing.T, wsURL, origin string) *testhelpers.EventConn {
	t.Helper()

	ec, err := testhelpers.Dial(wsURL, origin)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = ec.Conn.Close() })

	ec.Expect(t, server.EventConnectionResponse)
	return ec
}

// register claims a username on the connection and waits for the
// confirmation, discarding interleaved presence broadcasts.
func register(t *testing.T, ec *testhelpers.EventConn, name string) registeredPayload {
	t.Helper()

	if err := ec.Send(server.EventRegisterUser, map[string]string{"username": name}); err != nil {
		t.Fatalf("Failed to send register_user: %v", err)
	}

	env := ec.WaitFor(t, server.EventUserRegistered)
	var payload registeredPayload
	testhelpers.Decode(t, env, &payload)
	return payload
}
