package integration

import (
	"testing"
	"time"

	"github.com/privchat/privchat/internal/server"
	"github.com/privchat/privchat/test/testhelpers"
)

// TestGracefulShutdown verifies that a hub with no connections shuts down
// cleanly.
func TestGracefulShutdown(t *testing.T) {
	hub := server.NewHub()
	hub.SetHandler(server.NewRouter(server.NewSessionRegistry(), server.NewConversationStore(), hub))

	go hub.Run()
	time.Sleep(50 * time.Millisecond)

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestGracefulShutdownWithClients verifies that active client connections are
// closed during graceful shutdown and their pump goroutines finish.
func TestGracefulShutdownWithClients(t *testing.T) {
	registry := server.NewSessionRegistry()
	store := server.NewConversationStore()
	hub := server.NewHub()
	hub.SetHandler(server.NewRouter(registry, store, hub))
	go hub.Run()

	mux := server.SetupRoutes(hub, registry)
	ts := newConfiguredServer(t, mux)

	wsURL := buildWebSocketURL(ts.URL)

	const numClients = 5
	clients := make([]*testhelpers.EventConn, 0, numClients)
	for i := 0; i < numClients; i++ {
		ec, err := testhelpers.Dial(wsURL, ts.URL)
		if err != nil {
			t.Fatalf("Client %d failed to connect: %v", i, err)
		}
		ec.Expect(t, server.EventConnectionResponse)
		clients = append(clients, ec)
	}

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Hub shutdown failed: %v", err)
	}

	// Every client should observe its connection closing.
	for i, ec := range clients {
		if _, err := ec.Next(2 * time.Second); err == nil {
			t.Errorf("Client %d still receiving events after shutdown", i)
		}
		_ = ec.Conn.Close()
	}

	ts.Close()
}
