package server

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/room"
	"github.com/Tyrowin/trio/internal/testhelpers"
)

func newTestHub() *Hub {
	reg := room.NewRegistry(room.WithHasher(room.NewBcryptHasher(bcrypt.MinCost)))
	return NewHub(reg, time.Second)
}

func newTestServer(customize func(cfg *config.Config)) *Server {
	cfg := config.Default()
	if customize != nil {
		customize(cfg)
	}
	return New(cfg, newTestHub())
}

// newTestClient returns a client without a network connection. Frames it
// is sent stay in its send channel.
func newTestClient(hub *Hub) *Client {
	return NewClient(nil, hub, "test-client", config.Default().Server)
}

func nextFrame(t *testing.T, c *Client) testhelpers.Envelope {
	t.Helper()
	select {
	case frame, ok := <-c.GetSendChan():
		if !ok {
			t.Fatal("send channel closed")
		}
		var env testhelpers.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame %s: %v", frame, err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame sent")
	}
	return testhelpers.Envelope{}
}

func expectFrame(t *testing.T, c *Client, event string) testhelpers.Envelope {
	t.Helper()
	env := nextFrame(t, c)
	if env.Event != event {
		t.Fatalf("Expected %s, got %s %s", event, env.Event, env.Data)
	}
	return env
}

func expectError(t *testing.T, c *Client, reason string) {
	t.Helper()
	env := expectFrame(t, c, EventError)
	var got string
	env.Decode(t, &got)
	if got != reason {
		t.Errorf("error reason = %q, want %q", got, reason)
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.GetSendChan():
		t.Fatalf("unexpected frame %s", frame)
	default:
	}
}

func frame(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	return b
}
