package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/room"
)

func testSubscription(t *testing.T, endpoint string) *Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatal(err)
	}
	return &Subscription{
		Endpoint: endpoint,
		Keys: room.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func testPushConfig(t *testing.T) config.PushConfig {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatal(err)
	}
	return config.PushConfig{
		Enabled:         true,
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subject:         "mailto:test@example.com",
		TTL:             30 * time.Second,
		Timeout:         5 * time.Second,
	}
}

// TestWebPushSender tests delivery against a fake push service.
// It verifies the request is VAPID-signed and non-2xx responses fail.
func TestWebPushSender(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"created", http.StatusCreated, false},
		{"gone", http.StatusGone, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotTTL string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotTTL = r.Header.Get("TTL")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := NewWebPushSender(testPushConfig(t))
			err := s.Send(context.Background(), testSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"t","body":"b"}`))

			if tt.wantErr {
				if !errors.Is(err, room.ErrDeliveryFailed) {
					t.Errorf("Send() error = %v, want ErrDeliveryFailed", err)
				}
			} else if err != nil {
				t.Errorf("Send() error = %v", err)
			}

			if !strings.HasPrefix(gotAuth, "vapid ") {
				t.Errorf("Authorization = %q", gotAuth)
			}
			if gotTTL != "30" {
				t.Errorf("TTL = %q", gotTTL)
			}
		})
	}
}

// TestWebPushSenderUnreachable tests transport failures.
func TestWebPushSenderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewWebPushSender(testPushConfig(t))
	err := s.Send(context.Background(), testSubscription(t, url+"/push"), []byte("{}"))
	if !errors.Is(err, room.ErrDeliveryFailed) {
		t.Errorf("Send() error = %v, want ErrDeliveryFailed", err)
	}
}
