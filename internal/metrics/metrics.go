// Package metrics keeps process counters (rooms, websockets, push outcomes)
// in a go-metrics registry and periodically reports them through the logger.
package metrics

import (
	"context"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/Tyrowin/trio/internal/logging"
)

// Counter names.
const (
	Rooms           = "rooms"
	Members         = "members"
	Websockets      = "websockets"
	MessagesRelayed = "messages.relayed"
	PushSent        = "push.sent"
	PushFailed      = "push.failed"
	Drops           = "drops"
	RateLimited     = "ratelimited"
)

var reg gometrics.Registry = gometrics.NewRegistry()

// Incr adds i to the named counter.
func Incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Inc(i)
}

// Decr subtracts i from the named counter.
func Decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Dec(i)
}

// Count returns the current value of the named counter.
func Count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, reg).Count()
}

// Snapshot returns every registered metric keyed by name.
func Snapshot() map[string]map[string]interface{} {
	return reg.GetAll()
}

// Reset unregisters all metrics. Tests use it to start from zero.
func Reset() {
	reg.UnregisterAll()
}

// Reporter logs a metrics snapshot every interval and once more on stop.
type Reporter struct {
	interval time.Duration
}

// NewReporter creates a reporter. A non-positive interval only reports on stop.
func NewReporter(interval time.Duration) *Reporter {
	return &Reporter{interval: interval}
}

// Serve implements suture.Service.
func (r *Reporter) Serve(ctx context.Context) error {
	defer r.writeOnce()

	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.writeOnce()
		}
	}
}

func (r *Reporter) writeOnce() {
	logging.Info().Interface("metrics", Snapshot()).Msg("metrics report")
}

func (r *Reporter) String() string {
	return "metrics-reporter"
}
