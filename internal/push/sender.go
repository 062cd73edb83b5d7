package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/room"
)

// Sender delivers one encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *Subscription, payload []byte) error
}

// WebPushSender sends through the subscription's push service using VAPID.
type WebPushSender struct {
	options webpush.Options
}

// NewWebPushSender creates a sender from the push configuration.
func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{
		options: webpush.Options{
			HTTPClient:      &http.Client{Timeout: cfg.Timeout},
			Subscriber:      cfg.Subject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             int(cfg.TTL / time.Second),
		},
	}
}

// Send encrypts payload for sub and posts it. Any response outside 2xx is
// reported as a delivery failure.
func (s *WebPushSender) Send(ctx context.Context, sub *Subscription, payload []byte) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}

	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &opts)
	if err != nil {
		return fmt.Errorf("%w: %w", room.ErrDeliveryFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: push service responded %s", room.ErrDeliveryFailed, resp.Status)
	}
	return nil
}
