package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/room"
	"github.com/Tyrowin/trio/internal/server"
	"github.com/Tyrowin/trio/internal/testhelpers"
)

const wait = 2 * time.Second

func startServer(t *testing.T, customize func(cfg *config.Config)) (*httptest.Server, *server.Hub) {
	t.Helper()

	cfg := config.Default()
	if customize != nil {
		customize(cfg)
	}
	reg := room.NewRegistry(room.WithHasher(room.NewBcryptHasher(bcrypt.MinCost)))
	hub := server.NewHub(reg, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	ts := testhelpers.CreateTestServer(server.New(cfg, hub).Routes())
	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
	})
	return ts, hub
}

func join(t *testing.T, conn *websocket.Conn, created room.Created, userID string) {
	t.Helper()
	testhelpers.SendEvent(t, conn, server.EventJoinChat, map[string]string{
		"joinCode":      created.JoinCode,
		"secondaryCode": created.SecondaryCode,
		"userId":        userID,
		"username":      userID,
	})
}

func expectReason(t *testing.T, conn *websocket.Conn, reason string) {
	t.Helper()
	var got string
	testhelpers.ExpectEvent(t, conn, server.EventError, wait).Decode(t, &got)
	if got != reason {
		t.Errorf("reason = %q, want %q", got, reason)
	}
}

// expectPresence waits for a presence event about userID, skipping
// presence events about other members.
func expectPresence(t *testing.T, conn *websocket.Conn, event, userID string) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		var info room.MemberInfo
		testhelpers.ExpectEvent(t, conn, event, time.Until(deadline)).Decode(t, &info)
		if info.UserID == userID {
			return
		}
	}
	t.Fatalf("no %s for %q", event, userID)
}

// TestRoomLifecycleEndToEnd tests a full room lifecycle over real
// WebSocket connections. It verifies create, join, capacity, relay,
// presence and that the room disappears with its last member.
func TestRoomLifecycleEndToEnd(t *testing.T) {
	ts, hub := startServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	alice := testhelpers.MustConnect(t, url)
	testhelpers.SendEvent(t, alice, server.EventCreateChat, map[string]string{"userId": "alice", "username": "Alice"})
	var created room.Created
	testhelpers.ExpectEvent(t, alice, room.EventChatCreated, wait).Decode(t, &created)

	bob := testhelpers.MustConnect(t, url)
	join(t, bob, created, "bob")
	var joined room.Joined
	testhelpers.ExpectEvent(t, bob, room.EventChatJoined, wait).Decode(t, &joined)
	if joined.RoomID != created.RoomID || len(joined.Members) != 2 {
		t.Fatalf("chatJoined = %+v", joined)
	}
	expectPresence(t, alice, room.EventUserOnline, "bob")

	carol := testhelpers.MustConnect(t, url)
	join(t, carol, created, "carol")
	testhelpers.ExpectEvent(t, carol, room.EventChatJoined, wait)
	expectPresence(t, alice, room.EventUserOnline, "carol")
	expectPresence(t, bob, room.EventUserOnline, "carol")

	dave := testhelpers.MustConnect(t, url)
	join(t, dave, created, "dave")
	expectReason(t, dave, server.ReasonRoomFull)

	testhelpers.SendEvent(t, bob, server.EventSendMessage, map[string]string{
		"roomId":   created.RoomID,
		"userId":   "bob",
		"username": "bob",
		"message":  "hi all",
	})
	for _, c := range []*websocket.Conn{alice, bob, carol} {
		var msg map[string]string
		testhelpers.ExpectEvent(t, c, room.EventMessage, wait).Decode(t, &msg)
		if msg["message"] != "hi all" || msg["roomId"] != created.RoomID {
			t.Errorf("message payload = %v", msg)
		}
	}

	if err := testhelpers.CloseWebSocket(carol); err != nil {
		t.Fatal(err)
	}
	expectPresence(t, alice, room.EventUserOffline, "carol")
	expectPresence(t, bob, room.EventUserOffline, "carol")

	_ = testhelpers.CloseWebSocket(alice)
	_ = testhelpers.CloseWebSocket(bob)

	reg := hub.Registry()
	testhelpers.Eventually(t, wait, func() bool {
		_, ok := reg.LookupJoinCode(created.JoinCode)
		return !ok && reg.Stats().Rooms == 0
	}, "room removed after last disconnect")

	eve := testhelpers.MustConnect(t, url)
	join(t, eve, created, "eve")
	expectReason(t, eve, server.ReasonUnknownRoom)
}

// TestRejoinAfterReconnect tests that a user who reconnects keeps a single
// slot and that the stale connection closing does not remove it.
func TestRejoinAfterReconnect(t *testing.T) {
	ts, hub := startServer(t, nil)
	url := testhelpers.WebSocketURL(ts.URL)

	alice := testhelpers.MustConnect(t, url)
	testhelpers.SendEvent(t, alice, server.EventCreate, map[string]string{"userId": "alice"})
	var created room.Created
	testhelpers.ExpectEvent(t, alice, room.EventChatCreated, wait).Decode(t, &created)

	first := testhelpers.MustConnect(t, url)
	join(t, first, created, "bob")
	testhelpers.ExpectEvent(t, first, room.EventChatJoined, wait)

	second := testhelpers.MustConnect(t, url)
	join(t, second, created, "bob")
	var joined room.Joined
	testhelpers.ExpectEvent(t, second, room.EventChatJoined, wait).Decode(t, &joined)
	if len(joined.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(joined.Members))
	}

	_ = testhelpers.CloseWebSocket(first)
	testhelpers.Eventually(t, wait, func() bool { return hub.ClientCount() == 2 }, "stale client unregistered")

	snap, ok := hub.Registry().Snapshot(created.RoomID)
	if !ok || len(snap.Members) != 2 {
		t.Errorf("snapshot = %+v, %v", snap, ok)
	}
}

// TestWebSocketOriginValidation tests that disallowed origins cannot upgrade.
func TestWebSocketOriginValidation(t *testing.T) {
	ts, _ := startServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://allowed.example"}
	})
	url := testhelpers.WebSocketURL(ts.URL)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed", "http://allowed.example", true},
		{"allowed uppercase", "HTTP://ALLOWED.EXAMPLE", true},
		{"disallowed", "http://evil.example", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testhelpers.ConnectWebSocket(url, tt.origin)
			if tt.ok {
				if err != nil {
					t.Fatalf("connect: %v", err)
				}
				_ = conn.Close()
				return
			}
			if err == nil {
				_ = conn.Close()
				t.Fatal("Expectation: handshake refused, Received: connection")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v", resp)
			}
		})
	}
}

// TestWebSocketMessageSizeLimit tests that oversized frames close the
// connection.
func TestWebSocketMessageSizeLimit(t *testing.T) {
	ts, hub := startServer(t, func(cfg *config.Config) {
		cfg.Server.MaxMessageSize = 256
	})
	conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(ts.URL))

	big := strings.Repeat("x", 1024)
	testhelpers.SendEvent(t, conn, server.EventCreateChat, map[string]string{"userId": big})

	_, err := testhelpers.ReceiveEvent(conn, wait)
	if err == nil {
		t.Fatal("Expectation: connection closed, Received: event")
	}
	testhelpers.Eventually(t, wait, func() bool { return hub.ClientCount() == 0 }, "oversized client unregistered")
}

// TestWebSocketRateLimiting tests that frames beyond the burst are discarded.
func TestWebSocketRateLimiting(t *testing.T) {
	ts, _ := startServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.Burst = 2
		cfg.Server.RateLimit.RefillInterval = time.Hour
	})
	conn := testhelpers.MustConnect(t, testhelpers.WebSocketURL(ts.URL))

	for i := 0; i < 5; i++ {
		testhelpers.SendEvent(t, conn, server.EventCreateChat, map[string]string{"userId": "u"})
	}
	testhelpers.ExpectEvent(t, conn, room.EventChatCreated, wait)
	testhelpers.ExpectEvent(t, conn, room.EventChatCreated, wait)
	testhelpers.ExpectNoEvent(t, conn, 300*time.Millisecond)
}

// TestHubServeShutdown tests graceful shutdown of the hub service.
// It verifies that clients are disconnected and their rooms removed.
func TestHubServeShutdown(t *testing.T) {
	reg := room.NewRegistry()
	hub := server.NewHub(reg, 2*time.Second)
	ts := testhelpers.CreateTestServer(server.New(config.Default(), hub).Routes())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Serve(ctx) }()

	url := testhelpers.WebSocketURL(ts.URL)
	var clients []*websocket.Conn
	for i := 0; i < 3; i++ {
		c := testhelpers.MustConnect(t, url)
		testhelpers.SendEvent(t, c, server.EventCreateChat, map[string]string{"userId": "u"})
		testhelpers.ExpectEvent(t, c, room.EventChatCreated, wait)
		clients = append(clients, c)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}

	for i, c := range clients {
		if _, err := testhelpers.ReceiveEvent(c, wait); err == nil {
			t.Errorf("client %d still connected", i)
		}
	}
	if got := reg.Stats(); got.Rooms != 0 {
		t.Errorf("rooms after shutdown = %d", got.Rooms)
	}

	// Connections after shutdown are refused by the hub.
	late, _, err := testhelpers.ConnectWebSocket(url, testhelpers.DefaultOrigin)
	if err == nil {
		if _, err := testhelpers.ReceiveEvent(late, wait); err == nil {
			t.Error("late client was served")
		}
		_ = late.Close()
	}
}

func TestHTTPEndpoints(t *testing.T) {
	ts, _ := startServer(t, func(cfg *config.Config) {
		cfg.Push.Enabled = true
		cfg.Push.VAPIDPublicKey = "test-public-key"
		cfg.Push.VAPIDPrivateKey = "test-private-key"
	})

	tests := []struct {
		name        string
		method      string
		path        string
		status      int
		contentType string
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK, "text/plain"},
		{"root", http.MethodGet, "/", http.StatusOK, "text/plain"},
		{"public key", http.MethodGet, "/api/push/public-key", http.StatusOK, "application/json"},
		{"public key wrong method", http.MethodPost, "/api/push/public-key", http.StatusMethodNotAllowed, ""},
		{"websocket wrong method", http.MethodPost, "/ws", http.StatusMethodNotAllowed, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testhelpers.MakeRequest(t, tt.method, ts.URL+tt.path)
			defer resp.Body.Close()

			testhelpers.AssertStatusCode(t, resp, tt.status)
			if tt.contentType != "" {
				testhelpers.AssertContentType(t, resp, tt.contentType)
			}
		})
	}
}
