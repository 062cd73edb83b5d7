package push

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/trio/internal/logging"
	"github.com/Tyrowin/trio/internal/metrics"
	"github.com/Tyrowin/trio/internal/room"
)

const defaultTimeout = 10 * time.Second

// Invalidator is the dispatcher's view of the room registry. RoomExists is
// checked before a dispatch starts. ClearPushSubscription forgets a
// subscription that failed delivery and must do nothing if the room, the
// member or the subscription has since changed.
type Invalidator interface {
	RoomExists(roomID string) bool
	ClearPushSubscription(roomID, userID string, sub *Subscription) bool
}

// Dispatcher fans a relayed message out to the subscribed recipients.
// It implements room.Notifier.
type Dispatcher struct {
	sender      Sender
	invalidator Invalidator
	timeout     time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Each delivery is bounded by timeout.
func NewDispatcher(sender Sender, inv Invalidator, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		sender:      sender,
		invalidator: inv,
		timeout:     timeout,
		log:         logging.With().Str("component", "push").Logger(),
	}
}

// Notify starts delivery of d in the background and returns immediately.
// After Serve has stopped, Notify drops d.
func (d *Dispatcher) Notify(dp room.Dispatch) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Debug().Str("room_id", dp.RoomID).Msg("dispatcher stopped, notification dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.dispatch(dp)
	}()
}

func (d *Dispatcher) dispatch(dp room.Dispatch) {
	if !d.invalidator.RoomExists(dp.RoomID) {
		d.log.Debug().Str("room_id", dp.RoomID).Msg("room gone, notification dropped")
		return
	}

	payload, err := json.Marshal(NewNotification(dp))
	if err != nil {
		d.log.Error().Err(err).Str("room_id", dp.RoomID).Msg("failed to encode notification")
		return
	}

	var wg sync.WaitGroup
	for _, rc := range dp.Recipients {
		wg.Add(1)
		go func(rc room.Recipient) {
			defer wg.Done()
			d.deliver(dp.RoomID, rc, payload)
		}(rc)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(roomID string, rc room.Recipient, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.sender.Send(ctx, rc.Subscription, payload)
	if err == nil {
		metrics.Incr(metrics.PushSent, 1)
		return
	}

	metrics.Incr(metrics.PushFailed, 1)
	cleared := d.invalidator.ClearPushSubscription(roomID, rc.UserID, rc.Subscription)
	d.log.Warn().
		Err(err).
		Str("room_id", roomID).
		Str("user_id", rc.UserID).
		Bool("subscription_cleared", cleared).
		Msg("push delivery failed")
}

// Wait blocks until every dispatch started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Serve implements suture.Service. It runs until ctx is done, then refuses
// new dispatches and waits for in-flight ones.
func (d *Dispatcher) Serve(ctx context.Context) error {
	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) String() string {
	return "push-dispatcher"
}
