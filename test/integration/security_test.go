// Package integration contains security-focused integration tests.
//
// These tests verify that the upgrade-time security constraints are properly
// enforced, including origin validation and the wildcard allow-all setting.
package integration

import (
	"net/http"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/privchat/privchat/internal/server"
	"github.com/privchat/privchat/test/testhelpers"
)

func dialExpectingRejection(t *testing.T, wsURL string, header http.Header) {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected connection to be rejected")
	}
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
		}
	}
}

func TestOriginValidation(t *testing.T) {
	wsURL, origin := newRelayServer(t)

	t.Run("Missing Origin header", func(t *testing.T) {
		dialExpectingRejection(t, wsURL, http.Header{})
	})

	t.Run("Empty Origin header", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "")
		dialExpectingRejection(t, wsURL, header)
	})

	t.Run("Disallowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://evil.example.com")
		dialExpectingRejection(t, wsURL, header)
	})

	t.Run("Malformed origins", func(t *testing.T) {
		for _, bad := range []string{"not-a-url", "://missing-scheme", "http://"} {
			header := http.Header{}
			header.Set("Origin", bad)
			dialExpectingRejection(t, wsURL, header)
		}
	})

	t.Run("Allowed origin", func(t *testing.T) {
		ec, err := testhelpers.Dial(wsURL, origin)
		if err != nil {
			t.Fatalf("Allowed origin rejected: %v", err)
		}
		defer func() { _ = ec.Conn.Close() }()
		ec.Expect(t, server.EventConnectionResponse)
	})
}

func TestWildcardOriginAllowsAll(t *testing.T) {
	wsURL, _ := newRelayServer(t)

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	server.SetConfig(cfg)

	ec, err := testhelpers.Dial(wsURL, "http://anywhere.example.com")
	if err != nil {
		t.Fatalf("Wildcard config rejected an origin: %v", err)
	}
	defer func() { _ = ec.Conn.Close() }()
	ec.Expect(t, server.EventConnectionResponse)
}
