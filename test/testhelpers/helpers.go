// Package testhelpers provides common utilities and helper functions for
// testing the PrivChat relay.
//
// This package contains reusable test utilities shared across unit and
// integration tests: dialing the relay, exchanging envelope-framed events,
// and asserting on HTTP responses.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/privchat/privchat/internal/server"
)

// EventConn wraps a WebSocket connection with event-envelope framing. The
// relay's write pump may coalesce queued events into one frame separated by
// newlines, so reads are buffered per event.
type EventConn struct {
	Conn    *websocket.Conn
	pending [][]byte
}

// Dial connects to the relay's WebSocket endpoint, presenting the given
// origin header.
func Dial(url, origin string) (*EventConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &EventConn{Conn: conn}, nil
}

// Send writes one event envelope to the relay.
func (ec *EventConn) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ec.Conn.WriteJSON(server.Envelope{Event: event, Data: data})
}

// Next returns the next event from the relay, waiting up to timeout.
func (ec *EventConn) Next(timeout time.Duration) (server.Envelope, error) {
	for len(ec.pending) == 0 {
		if err := ec.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return server.Envelope{}, err
		}
		_, frame, err := ec.Conn.ReadMessage()
		if err != nil {
			return server.Envelope{}, err
		}
		for _, part := range bytes.Split(frame, []byte{'\n'}) {
			if len(bytes.TrimSpace(part)) > 0 {
				ec.pending = append(ec.pending, part)
			}
		}
	}

	raw := ec.pending[0]
	ec.pending = ec.pending[1:]

	var env server.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return server.Envelope{}, fmt.Errorf("decode envelope %q: %w", raw, err)
	}
	return env, nil
}

// Expect returns the next event and fails the test unless it carries the
// given name.
func (ec *EventConn) Expect(t *testing.T, event string) server.Envelope {
	t.Helper()

	env, err := ec.Next(2 * time.Second)
	if err != nil {
		t.Fatalf("Waiting for %q event: %v", event, err)
	}
	if env.Event != event {
		t.Fatalf("Expected %q event, got %q (%s)", event, env.Event, env.Data)
	}
	return env
}

// WaitFor reads events until one carries the given name, failing the test if
// it does not arrive in time. Intervening events are discarded.
func (ec *EventConn) WaitFor(t *testing.T, event string) server.Envelope {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env, err := ec.Next(time.Until(deadline))
		if err != nil {
			t.Fatalf("Waiting for %q event: %v", event, err)
		}
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("Timed out waiting for %q event", event)
	return server.Envelope{}
}

// Decode unmarshals the envelope payload into out.
func Decode(t *testing.T, env server.Envelope, out any) {
	t.Helper()

	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", env.Event, err)
	}
}

// Close gracefully closes the connection.
func (ec *EventConn) Close() error {
	err := ec.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return ec.Conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
