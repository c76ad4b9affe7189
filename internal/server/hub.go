// Package server coordinates the set of live WebSocket connections for the
// PrivChat relay via the Hub type: registration, targeted delivery, fan-out to
// every connection, and connection cleanup.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventHandler receives connection lifecycle callbacks and decoded inbound
// events from the hub and its clients. The Router is the production
// implementation.
type EventHandler interface {
	// HandleConnect is invoked once a connection has been admitted to the hub.
	HandleConnect(c *Client)

	// HandleEvent is invoked with each raw inbound frame from a connection.
	HandleEvent(c *Client, raw []byte)

	// HandleDisconnect is invoked after a connection has been dropped from
	// the hub, before remaining connections are notified of anything.
	HandleDisconnect(c *Client)
}

// Hub tracks every live connection and owns delivery to them. It is the
// transport-side connection set only: online presence lives in the
// SessionRegistry, so the two can evolve independently. Membership changes
// are serialized through the Run loop; delivery helpers are safe to call from
// any goroutine.
type Hub struct {
	clients    map[*Client]bool
	byID       map[string]*Client
	register   chan *Client
	unregister chan *Client
	handler    EventHandler
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance. Call SetHandler before
// Run so admitted connections reach the router.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetHandler installs the event handler that receives lifecycle callbacks and
// inbound events. It must be called before Run.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// GetRegisterChan returns the channel used for admitting new clients to the
// hub. This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for removing clients from the
// hub. This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client admission and
// removal. This method should be called in a separate goroutine as it runs
// until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.admit(client)

		case client := <-h.unregister:
			h.drop(client)
		}
	}
}

// admit adds a connection to the set, starts its pumps, and notifies the
// handler so the connection receives its confirmation event.
func (h *Hub) admit(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	h.byID[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Connection %s admitted from %s. Total connections: %d", client.id, client.addr, clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	if h.handler != nil {
		h.handler.HandleConnect(client)
	}
}

// drop removes a connection from the set and notifies the handler, which
// releases the username and broadcasts the departure to the remaining
// connections. Dropping a connection that was already removed is a no-op.
func (h *Hub) drop(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	delete(h.byID, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	log.Printf("Connection %s from %s removed. Total connections: %d", client.id, client.addr, clientCount)

	if h.handler != nil {
		h.handler.HandleDisconnect(client)
	}
}

// clientByID returns the live connection with the given id, if any.
func (h *Hub) clientByID(id string) (*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, ok := h.byID[id]
	return client, ok
}

// ClientCount returns the number of connections currently in the set.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

// sendTo delivers a payload to a single connection. Delivery is best-effort:
// a closed connection or a full send buffer drops the payload and reports
// false rather than blocking the caller.
func (h *Hub) sendTo(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in sendTo: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// The send channel might be closed concurrently, hence the recover above.
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// Broadcast delivers a payload to every connection in the set, registered or
// not. A connection whose send buffer is full is removed so one unresponsive
// client cannot stall the rest.
func (h *Hub) Broadcast(payload []byte) {
	clients := h.snapshot()

	var failed []*Client
	for _, client := range clients {
		if !h.sendTo(client, payload) {
			failed = append(failed, client)
		}
	}

	h.removeFailedClients(failed)
}

// snapshot returns a consistent copy of the current connection set.
func (h *Hub) snapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients drops connections that failed delivery and lets the
// handler clean up their sessions.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var removed []*Client
	for _, client := range failed {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			delete(h.byID, client.id)
			client.closed = true
			removed = append(removed, client)
			log.Printf("Connection %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels and run disconnect handling after releasing the lock.
	for _, client := range removed {
		close(client.send)
		if h.handler != nil {
			h.handler.HandleDisconnect(client)
		}
	}
}

// shutdownClients closes all active client connections. Closing the send
// channels first lets each write pump flush a close frame and exit, so
// Shutdown's WaitGroup can complete.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		client.closed = true
	}
	h.clients = make(map[*Client]bool)
	h.byID = make(map[string]*Client)
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete. It returns after all client connections are closed
// and goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
