package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/Tyrowin/trio/internal/logging"
	"github.com/Tyrowin/trio/internal/metrics"
	"github.com/Tyrowin/trio/internal/room"
)

const defaultShutdownTimeout = 10 * time.Second

// Hub tracks live WebSocket clients, starts their pumps and detaches them
// from the room registry when they go away.
type Hub struct {
	registry        *room.Registry
	clients         map[*Client]bool
	register        chan *Client
	unregister      chan *Client
	mutex           sync.RWMutex
	wg              sync.WaitGroup
	done            chan struct{}
	doneOnce        sync.Once
	started         atomic.Bool
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewHub creates a hub for reg. shutdownTimeout bounds how long Serve waits
// for client goroutines after its context ends.
func NewHub(reg *room.Registry, shutdownTimeout time.Duration) *Hub {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &Hub{
		registry:        reg,
		clients:         make(map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		shutdownTimeout: shutdownTimeout,
		log:             logging.With().Str("component", "hub").Logger(),
	}
}

// Registry returns the room registry clients act on.
func (h *Hub) Registry() *room.Registry {
	return h.registry
}

// Register hands a new client to the hub, which launches its pumps. It
// returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient is called by a client's read pump on exit.
func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.removeClient(client)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run handles client registration and unregistration until ctx is done,
// then closes every client connection. A hub runs once; after Run returns,
// Register refuses new clients.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			metrics.Incr(metrics.Websockets, 1)
			h.log.Debug().Str("remote_addr", client.addr).Int("clients", clientCount).Msg("client registered")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// removeClient forgets client, detaches it from its rooms and stops its
// write pump. Only the first call for a client has any effect.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.registry.DetachConnection(client)
	client.closeSend()
	metrics.Decr(metrics.Websockets, 1)
	h.log.Debug().Str("remote_addr", client.addr).Int("clients", clientCount).Msg("client unregistered")
}

// getClientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// shutdownClients closes all active client connections. Their read pumps
// then unregister them.
func (h *Hub) shutdownClients() {
	clients := h.getClientSnapshot()
	h.log.Info().Int("clients", len(clients)).Msg("shutting down all client connections")

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn().Err(err).Str("remote_addr", client.addr).Msg("error closing client connection")
		}
	}
}

// Serve implements suture.Service. It runs the hub until ctx is done and
// then waits up to the shutdown timeout for client goroutines to finish.
// A stopped hub cannot be restarted, so a second call returns
// suture.ErrDoNotRestart.
func (h *Hub) Serve(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		h.log.Warn().Msg("hub already ran, not restarting")
		return suture.ErrDoNotRestart
	}
	h.log.Info().Msg("hub started")
	h.Run(ctx)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return ctx.Err()
	case <-time.After(h.shutdownTimeout):
		h.log.Warn().Dur("timeout", h.shutdownTimeout).Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

func (h *Hub) String() string {
	return "websocket-hub"
}
