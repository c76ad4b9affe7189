package server

import (
	"testing"
	"time"
)

func TestNewHubInitialized(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if hub.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("New hub reports %d connections", hub.ClientCount())
	}
}

func TestHubShutdownWithoutClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

func TestHubClientLookup(t *testing.T) {
	_, _, hub, _ := newTestRouter()
	c := attachClient(hub, "127.0.0.1:1000")

	got, ok := hub.clientByID(c.id)
	if !ok || got != c {
		t.Error("clientByID did not return the attached client")
	}

	if _, ok := hub.clientByID("nope"); ok {
		t.Error("clientByID returned a client for an unknown id")
	}

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 connection, got %d", hub.ClientCount())
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	_, _, hub, _ := newTestRouter()
	a := attachClient(hub, "127.0.0.1:1000")
	b := attachClient(hub, "127.0.0.1:1001")

	hub.Broadcast([]byte(`{"event":"test"}`))

	for _, c := range []*Client{a, b} {
		select {
		case <-c.send:
		default:
			t.Errorf("Client %s did not receive the broadcast", c.addr)
		}
	}
}

func TestBroadcastRemovesUnresponsiveClient(t *testing.T) {
	registry, _, hub, rt := newTestRouter()
	stuck := attachClient(hub, "127.0.0.1:1000")
	healthy := attachClient(hub, "127.0.0.1:1001")

	registerClient(t, rt, stuck, "stuck")
	expectEvent(t, healthy, EventUserJoined)

	// Saturate the stuck client's send buffer so delivery must fail.
	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- []byte("x")
	}

	hub.Broadcast([]byte(`{"event":"test"}`))

	if hub.ClientCount() != 1 {
		t.Fatalf("Expected unresponsive connection to be removed, hub has %d", hub.ClientCount())
	}
	if _, ok := hub.clientByID(stuck.id); ok {
		t.Error("Unresponsive client still resolvable by id")
	}

	// Removal runs the normal disconnect path: the session is released and
	// the remaining connections hear about it.
	if _, ok := registry.Lookup("stuck"); ok {
		t.Error("Session survived forced removal")
	}

	expectEvent(t, healthy, "test")
	expectEvent(t, healthy, EventUserLeft)
}

func TestSendToClosedClient(t *testing.T) {
	_, _, hub, _ := newTestRouter()
	c := attachClient(hub, "127.0.0.1:1000")
	hub.drop(c)

	if hub.sendTo(c, []byte("late")) {
		t.Error("sendTo succeeded for a dropped client")
	}
}
